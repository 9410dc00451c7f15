package constants

// JobStatus is the canonical status for a stored invoice processing run.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusQueued  JobStatus = "QUEUED"  // queued for processing
	JobStatusRunning JobStatus = "RUNNING" // in progress
	JobStatusOCROK   JobStatus = "OCR_OK"  // stage 1 completed (text extracted)
	JobStatusLLMOK   JobStatus = "LLM_OK"  // stage 2 completed (lines extracted)
	JobStatusDone    JobStatus = "DONE"    // reimbursement computed
	JobStatusFailed  JobStatus = "FAILED"  // terminal failure
)
