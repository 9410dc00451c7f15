// Package coverage computes reimbursement amounts from the PennyPet
// policy formulas or, in richer mode, from the coverage-rule table.
package coverage

import (
	"github.com/shopspring/decimal"

	"github.com/KaliFly/pennypet-invoice-llm-demo/constants"
)

// PolicyFormula is the simplified coverage model: one rate and one
// annual cap per tier. These four constants are the authoritative
// business rules for the final computation.
type PolicyFormula struct {
	Name         constants.Formula
	RatePercent  float64
	AnnualCap    decimal.Decimal
	AccidentOnly bool
}

var (
	capZero     = decimal.Zero
	capPremium  = decimal.NewFromInt(500)
	capIntegral = decimal.NewFromInt(1000)
)

var policyFormulas = map[constants.Formula]PolicyFormula{
	constants.FormulaStart: {
		Name:        constants.FormulaStart,
		RatePercent: 0,
		AnnualCap:   capZero,
	},
	constants.FormulaPremium: {
		Name:         constants.FormulaPremium,
		RatePercent:  100,
		AnnualCap:    capPremium,
		AccidentOnly: true,
	},
	constants.FormulaIntegral: {
		Name:        constants.FormulaIntegral,
		RatePercent: 50,
		AnnualCap:   capIntegral,
	},
	constants.FormulaIntegralPlus: {
		Name:        constants.FormulaIntegralPlus,
		RatePercent: 100,
		AnnualCap:   capIntegral,
	},
}

// FormulaByName resolves a free-text formula name. Unknown names resolve
// to START, the zero-coverage tier.
func FormulaByName(name string) PolicyFormula {
	f, _ := constants.CanonicalizeFormula(name)
	return policyFormulas[f]
}

// Formulas returns the four policy tiers in ascending coverage order.
func Formulas() []PolicyFormula {
	out := make([]PolicyFormula, 0, len(policyFormulas))
	for _, name := range constants.AllFormulas() {
		out = append(out, policyFormulas[constants.Formula(name)])
	}
	return out
}
