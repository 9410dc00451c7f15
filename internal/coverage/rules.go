package coverage

import (
	"github.com/shopspring/decimal"

	"github.com/KaliFly/pennypet-invoice-llm-demo/constants"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/common"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/lexicon"
)

// RuleEngine is the richer coverage mode: lookups against the external
// rule table instead of the four fixed constants.
type RuleEngine struct {
	rules []lexicon.CoverageRule
}

func NewRuleEngine(rules []lexicon.CoverageRule) *RuleEngine {
	return &RuleEngine{rules: rules}
}

// Lookup returns the first rule covering the formula, normalized code
// and claim context. Table order is the match precedence.
func (e *RuleEngine) Lookup(formula constants.Formula, code string, isAccident bool) (*lexicon.CoverageRule, bool) {
	for i := range e.rules {
		r := &e.rules[i]
		if r.Formule != string(formula) {
			continue
		}
		if !ruleCoversCode(r, code) {
			continue
		}
		if r.Type == lexicon.AccidentOnly && !isAccident {
			continue
		}
		return r, true
	}
	return nil, false
}

func ruleCoversCode(r *lexicon.CoverageRule, code string) bool {
	if r.CoveredCode == code {
		return true
	}
	if r.CoveredCode != constants.CoveredCodeAll {
		return false
	}
	// an unclassified line falls back to the global rule
	if code == constants.CodeIndetermine {
		return true
	}
	_, ok := r.CoveredActs[code]
	return ok
}

// ComputeWithRules resolves the applicable rule and applies its rate and
// cap. When no rule matches, the line is reported with zero
// reimbursement and common.ErrNoRuleFound; the invoice keeps going.
func (e *RuleEngine) ComputeWithRules(amount decimal.Decimal, formula constants.Formula, code string, isAccident bool) (Result, error) {
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	rule, ok := e.Lookup(formula, code, isAccident)
	if !ok {
		return Result{
			AmountBilled:     amount,
			AmountReimbursed: decimal.Zero,
			AmountRemaining:  amount,
			Note:             "aucune règle de prise en charge trouvée",
		}, common.ErrNoRuleFound
	}

	rate := decimal.NewFromFloat(rule.RatePercent).Div(decimal.NewFromInt(100))
	cap := decimal.NewFromFloat(rule.AnnualCap)
	reimbursed := decimal.Min(amount.Mul(rate), cap)

	return Result{
		AmountBilled:     amount,
		RateApplied:      rule.RatePercent,
		AmountReimbursed: reimbursed,
		AmountRemaining:  amount.Sub(reimbursed),
	}, nil
}
