package coverage

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/KaliFly/pennypet-invoice-llm-demo/constants"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestComputeStart(t *testing.T) {
	for _, amount := range []string{"0", "45.50", "800", "10000"} {
		for _, accident := range []bool{true, false} {
			res := Compute(dec(amount), constants.FormulaStart, accident)
			if !res.AmountReimbursed.IsZero() {
				t.Errorf("START reimbursed %s for amount=%s accident=%v", res.AmountReimbursed, amount, accident)
			}
			if !res.AmountRemaining.Equal(dec(amount)) {
				t.Errorf("START remaining = %s, want %s", res.AmountRemaining, amount)
			}
		}
	}
}

func TestComputePremium(t *testing.T) {
	tests := []struct {
		amount     string
		accident   bool
		reimbursed string
		rate       float64
	}{
		{"800", true, "500", 100},
		{"300", true, "300", 100},
		{"800", false, "0", 0},
		{"0", true, "0", 0},
	}
	for _, tt := range tests {
		res := Compute(dec(tt.amount), constants.FormulaPremium, tt.accident)
		if !res.AmountReimbursed.Equal(dec(tt.reimbursed)) {
			t.Errorf("PREMIUM(%s, accident=%v) reimbursed = %s, want %s",
				tt.amount, tt.accident, res.AmountReimbursed, tt.reimbursed)
		}
		if res.RateApplied != tt.rate {
			t.Errorf("PREMIUM(%s, accident=%v) rate = %v, want %v",
				tt.amount, tt.accident, res.RateApplied, tt.rate)
		}
	}
}

func TestComputeIntegral(t *testing.T) {
	tests := []struct{ amount, reimbursed, remaining string }{
		{"100", "50", "50"},
		{"45", "22.5", "22.5"},
		{"2500", "1000", "1500"},
		{"0", "0", "0"},
	}
	for _, tt := range tests {
		for _, accident := range []bool{true, false} {
			res := Compute(dec(tt.amount), constants.FormulaIntegral, accident)
			if !res.AmountReimbursed.Equal(dec(tt.reimbursed)) {
				t.Errorf("INTEGRAL(%s) reimbursed = %s, want %s", tt.amount, res.AmountReimbursed, tt.reimbursed)
			}
			if !res.AmountRemaining.Equal(dec(tt.remaining)) {
				t.Errorf("INTEGRAL(%s) remaining = %s, want %s", tt.amount, res.AmountRemaining, tt.remaining)
			}
			if res.RateApplied != 50 {
				t.Errorf("INTEGRAL rate = %v, want 50", res.RateApplied)
			}
		}
	}
}

func TestComputeIntegralPlus(t *testing.T) {
	tests := []struct{ amount, reimbursed string }{
		{"1200", "1000"},
		{"300", "300"},
		{"1000", "1000"},
	}
	for _, tt := range tests {
		res := Compute(dec(tt.amount), constants.FormulaIntegralPlus, false)
		if !res.AmountReimbursed.Equal(dec(tt.reimbursed)) {
			t.Errorf("INTEGRAL_PLUS(%s) reimbursed = %s, want %s", tt.amount, res.AmountReimbursed, tt.reimbursed)
		}
	}
}

func TestComputeInvariants(t *testing.T) {
	amounts := []string{"0", "0.01", "49.99", "500", "999.99", "1000", "1000.01", "2500", "99999"}
	for _, name := range constants.AllFormulas() {
		formula := constants.Formula(name)
		pf := policyFormulas[formula]
		for _, a := range amounts {
			for _, accident := range []bool{true, false} {
				res := Compute(dec(a), formula, accident)
				if res.AmountReimbursed.GreaterThan(res.AmountBilled) {
					t.Errorf("%s(%s): reimbursed %s > billed", name, a, res.AmountReimbursed)
				}
				if res.AmountReimbursed.GreaterThan(pf.AnnualCap) {
					t.Errorf("%s(%s): reimbursed %s > cap %s", name, a, res.AmountReimbursed, pf.AnnualCap)
				}
				if !res.AmountReimbursed.Add(res.AmountRemaining).Equal(res.AmountBilled) {
					t.Errorf("%s(%s): reimbursed+remaining != billed", name, a)
				}
			}
		}
	}
}

func TestComputeUnknownFormulaIsStart(t *testing.T) {
	res := Compute(dec("500"), constants.Formula("GOLD"), true)
	if !res.AmountReimbursed.IsZero() {
		t.Errorf("unknown formula reimbursed %s, want 0", res.AmountReimbursed)
	}
}

func TestFormulaByName(t *testing.T) {
	if f := FormulaByName("integral plus"); f.Name != constants.FormulaIntegralPlus {
		t.Errorf("FormulaByName(integral plus) = %v", f.Name)
	}
	if f := FormulaByName("???"); f.Name != constants.FormulaStart {
		t.Errorf("unknown name should resolve to START, got %v", f.Name)
	}
}
