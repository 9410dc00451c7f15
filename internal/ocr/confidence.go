package ocr

import (
	"regexp"
	"strings"
)

var (
	// dd/mm/yyyy and dd-mm-yyyy, the usual French invoice date formats
	reDate    = regexp.MustCompile(`\b\d{2}[/-]\d{2}[/-](?:20)?\d{2}\b`)
	reCurr    = regexp.MustCompile(`€|\beuros?\b|\beur\b`)
	reAmount  = regexp.MustCompile(`\b\d{1,5}[.,]\d{2}\b`)
	reInvoice = regexp.MustCompile(`\bfactures?\b|\btotal\b|\btva\b|\bht\b|\bttc\b`)

	reBlank = regexp.MustCompile(`[ \t]{2,}`)
)

func hasDatePattern(s string) bool     { return reDate.MatchString(s) }
func hasCurrencyPattern(s string) bool { return reCurr.MatchString(s) }
func hasAmountPattern(s string) bool   { return reAmount.MatchString(s) }
func hasInvoicePattern(s string) bool  { return reInvoice.MatchString(s) }

// naive heuristic confidence based on decoded text characteristics:
// date-ish, currency-ish, amount-ish and invoice-ish markers each add
// a slice on top of a small base.
func heuristicConfidence(txt string) float32 {
	txtL := strings.ToLower(txt)
	score := float32(0.2) // base
	if hasDatePattern(txtL) {
		score += 0.15
	}
	if hasCurrencyPattern(txtL) {
		score += 0.15
	}
	if hasAmountPattern(txtL) {
		score += 0.15
	}
	if hasInvoicePattern(txtL) {
		score += 0.15
	}
	if len(txt) > 120 {
		score += 0.1
	} // enough content
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// normalizeText collapses runs of spaces and trims trailing blanks
// without touching line structure, which the LLM relies on.
func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimRight(reBlank.ReplaceAllString(ln, " "), " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
