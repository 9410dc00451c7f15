package lexicon

import "regexp"

// ActEntry is one row of the acts table: a compiled pattern mapping
// free-text invoice wording to a canonical act code. Row order is the
// match precedence, so slices keep source order.
type ActEntry struct {
	Categorie string
	SousActe  string
	AMV       int
	Pattern   *regexp.Regexp
	Code      string
}

// GlossaryRecord is one structured drug record from the glossary file.
type GlossaryRecord struct {
	Medicament    string   `json:"medicament"`
	Commercial    string   `json:"libelle_commercial"`
	Therapeutique string   `json:"categorie_therapeutique"`
	SynonymesOCR  []string `json:"synonymes_ocr"`
}

// CoverageType says which claim contexts a rule covers.
type CoverageType string

const (
	AccidentAndIllness CoverageType = "ACCIDENT_AND_ILLNESS"
	AccidentOnly       CoverageType = "ACCIDENT_ONLY"
)

// CoverageRule ties a formula and covered code/type to a reimbursement
// rate and annual cap. CoveredCode may be the "ALL" sentinel, in which
// case CoveredActs lists the codes actually covered.
type CoverageRule struct {
	Assureur    string
	Formule     string
	CoveredCode string
	CoveredActs map[string]struct{}
	Type        CoverageType
	RatePercent float64
	AnnualCap   float64
}
