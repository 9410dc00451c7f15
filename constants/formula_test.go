package constants

import "testing"

func TestCanonicalizeFormula(t *testing.T) {
	tests := []struct {
		in     string
		want   Formula
		wantOK bool
	}{
		{"INTEGRAL", FormulaIntegral, true},
		{"integral", FormulaIntegral, true},
		{"  premium  ", FormulaPremium, true},
		{"integral plus", FormulaIntegralPlus, true},
		{"INTEGRAL-PLUS", FormulaIntegralPlus, true},
		{"INTEGRAL+", FormulaIntegralPlus, true},
		{"start", FormulaStart, true},
		{"", FormulaStart, false},
		{"GOLD", FormulaStart, false},
	}
	for _, tt := range tests {
		got, ok := CanonicalizeFormula(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("CanonicalizeFormula(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestAllFormulas(t *testing.T) {
	got := AllFormulas()
	if len(got) != 4 {
		t.Fatalf("expected 4 formulas, got %d", len(got))
	}
	if got[0] != "START" || got[3] != "INTEGRAL_PLUS" {
		t.Errorf("unexpected formula ordering: %v", got)
	}
}
