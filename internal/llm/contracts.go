package llm

import "context"

// InvoiceLine is one invoice line item as extracted by the model. Amounts
// travel as float64 on the wire and are converted to decimals at the
// pipeline boundary.
type InvoiceLine struct {
	AnimalUID   string  `json:"animal_uid"`
	MontantHT   float64 `json:"montant_ht"`
	Description string  `json:"description"`
}

// Extraction is the normalized shape we want from the LLM: the invoice
// lines plus the total the model read off the document. Client details
// are opaque here and passed through to the invoice result untouched.
type Extraction struct {
	Lignes             []InvoiceLine  `json:"lignes"`
	MontantTotal       float64        `json:"montant_total"`
	InformationsClient map[string]any `json:"informations_client,omitempty"`
}

type ExtractRequest struct {
	OCRText      string
	FilenameHint string

	PrepConfidence float32
}

// LineExtractor is the interface the pipeline depends on.
type LineExtractor interface {
	ExtractLines(ctx context.Context, req ExtractRequest) (Extraction, []byte /*rawJSON*/, error)
}
