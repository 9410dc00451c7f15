package coverage

import (
	"github.com/shopspring/decimal"

	"github.com/KaliFly/pennypet-invoice-llm-demo/constants"
)

// Result is the reimbursement outcome for one billed amount.
type Result struct {
	AmountBilled     decimal.Decimal `json:"montant_facture"`
	RateApplied      float64         `json:"taux_applique"`
	AmountReimbursed decimal.Decimal `json:"montant_rembourse"`
	AmountRemaining  decimal.Decimal `json:"reste_a_charge"`
	Note             string          `json:"note,omitempty"`
}

// Compute applies the fixed policy constants to a billed amount.
// Identical inputs always produce identical outputs; the invariants
// reimbursed <= billed and reimbursed <= cap hold for every tier.
func Compute(amount decimal.Decimal, formula constants.Formula, isAccident bool) Result {
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	res := Result{
		AmountBilled:     amount,
		AmountReimbursed: decimal.Zero,
	}

	switch formula {
	case constants.FormulaPremium:
		if isAccident {
			res.AmountReimbursed = decimal.Min(amount, capPremium)
			if res.AmountReimbursed.IsPositive() {
				res.RateApplied = 100
			}
		}
	case constants.FormulaIntegral:
		half := amount.Mul(decimal.NewFromFloat(0.5))
		res.AmountReimbursed = decimal.Min(half, capIntegral)
		res.RateApplied = 50
	case constants.FormulaIntegralPlus:
		res.AmountReimbursed = decimal.Min(amount, capIntegral)
		res.RateApplied = 100
	default:
		// START and any unknown tier carry no coverage
	}

	res.AmountRemaining = amount.Sub(res.AmountReimbursed)
	return res
}
