package constants

import (
	"strings"
)

// Formula is the named insurance coverage tier of a PennyPet contract.
type Formula string

const (
	FormulaStart        Formula = "START"
	FormulaPremium      Formula = "PREMIUM"
	FormulaIntegral     Formula = "INTEGRAL"
	FormulaIntegralPlus Formula = "INTEGRAL_PLUS"
)

var allFormulas = []Formula{
	FormulaStart,
	FormulaPremium,
	FormulaIntegral,
	FormulaIntegralPlus,
}

func AllFormulas() []string {
	result := make([]string, len(allFormulas))
	for i, f := range allFormulas {
		result[i] = string(f)
	}
	return result
}

// CanonicalizeFormula maps free-text formula names (LLM output, query params,
// contract rows) onto the fixed tier set. Unknown names resolve to START,
// the zero-coverage tier, with ok=false.
func CanonicalizeFormula(input string) (Formula, bool) {
	if input == "" {
		return FormulaStart, false
	}

	normalized := strings.ToUpper(strings.TrimSpace(input))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")

	synonyms := map[string]Formula{
		"INTEGRALPLUS":  FormulaIntegralPlus,
		"INTEGRAL+":     FormulaIntegralPlus,
		"INTÉGRAL":      FormulaIntegral,
		"INTÉGRAL_PLUS": FormulaIntegralPlus,
	}
	if f, ok := synonyms[normalized]; ok {
		return f, true
	}

	for _, f := range allFormulas {
		if normalized == string(f) {
			return f, true
		}
	}
	return FormulaStart, false
}

// Sentinel normalized codes produced by the label normalizer.
const (
	CodeMedicaments = "MEDICAMENTS"
	CodeIndetermine = "INDETERMINE"
	CoveredCodeAll  = "ALL"
)
