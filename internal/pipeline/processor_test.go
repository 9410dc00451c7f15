package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/KaliFly/pennypet-invoice-llm-demo/constants"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/common"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/coverage"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/lexicon"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/llm"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/normalize"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/ocr"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCore(t *testing.T, withRules bool) *Core {
	t.Helper()
	store, err := lexicon.Load(common.LexiconConfig{}, testLogger())
	if err != nil {
		t.Fatalf("lexicon.Load: %v", err)
	}
	var rules *coverage.RuleEngine
	if withRules {
		rules = coverage.NewRuleEngine(store.Rules)
	}
	return NewCore(normalize.New(store, testLogger()), rules, testLogger())
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestProcessExtractionScenarios(t *testing.T) {
	core := testCore(t, false)

	tests := []struct {
		name       string
		line       llm.InvoiceLine
		formula    string
		wantCode   string
		accident   bool
		reimbursed string
		remaining  string
	}{
		{
			name:       "medication under integral",
			line:       llm.InvoiceLine{Description: "Vaccin Rage", MontantHT: 45.0},
			formula:    "INTEGRAL",
			wantCode:   constants.CodeMedicaments,
			reimbursed: "22.5",
			remaining:  "22.5",
		},
		{
			name:       "accident surgery under premium",
			line:       llm.InvoiceLine{Description: "Fracture patte avant – chirurgie", MontantHT: 800.0},
			formula:    "PREMIUM",
			wantCode:   "CHIRURGIE_FRACTURE",
			accident:   true,
			reimbursed: "500",
			remaining:  "300",
		},
		{
			name:       "consultation under start",
			line:       llm.InvoiceLine{Description: "Consultation générale", MontantHT: 65.0},
			formula:    "START",
			wantCode:   "CONSULTATION_GENERALE",
			reimbursed: "0",
			remaining:  "65",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := core.ProcessExtraction(llm.Extraction{
				Lignes: []llm.InvoiceLine{tt.line},
			}, tt.formula)
			if err != nil {
				t.Fatalf("ProcessExtraction: %v", err)
			}
			if len(res.Lines) != 1 {
				t.Fatalf("got %d lines, want 1", len(res.Lines))
			}
			l := res.Lines[0]
			if l.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", l.Code, tt.wantCode)
			}
			if l.IsAccident != tt.accident {
				t.Errorf("accident = %v, want %v", l.IsAccident, tt.accident)
			}
			if !l.AmountReimbursed.Equal(dec(tt.reimbursed)) {
				t.Errorf("reimbursed = %s, want %s", l.AmountReimbursed, tt.reimbursed)
			}
			if !l.AmountRemaining.Equal(dec(tt.remaining)) {
				t.Errorf("remaining = %s, want %s", l.AmountRemaining, tt.remaining)
			}
		})
	}
}

func TestProcessExtractionAggregation(t *testing.T) {
	core := testCore(t, false)

	res, err := core.ProcessExtraction(llm.Extraction{
		Lignes: []llm.InvoiceLine{
			{Description: "Hospitalisation", MontantHT: 1500},
			{Description: "Analyses sanguines", MontantHT: 300},
		},
		InformationsClient: map[string]any{"pet_name": "Caramel"},
	}, "INTEGRAL_PLUS")
	if err != nil {
		t.Fatalf("ProcessExtraction: %v", err)
	}
	if !res.TotalBilled.Equal(dec("1800")) {
		t.Errorf("total billed = %s, want 1800", res.TotalBilled)
	}
	if !res.TotalReimbursed.Equal(dec("1300")) {
		t.Errorf("total reimbursed = %s, want 1300", res.TotalReimbursed)
	}
	if !res.TotalRemaining.Equal(dec("500")) {
		t.Errorf("total remaining = %s, want 500", res.TotalRemaining)
	}
	if res.FormulaUsed != "INTEGRAL_PLUS" {
		t.Errorf("formula used = %q", res.FormulaUsed)
	}
	if res.ClientInfo["pet_name"] != "Caramel" {
		t.Errorf("client info lost: %v", res.ClientInfo)
	}
}

func TestProcessExtractionBatchResilience(t *testing.T) {
	core := testCore(t, false)

	lines := []llm.InvoiceLine{
		{Description: "Consultation générale", MontantHT: 35},
		{Description: "Metacam 10ml", MontantHT: 22.8},
		{Description: "montant illisible", MontantHT: 0}, // coerced upstream
		{Description: "Radio du thorax", MontantHT: 60},
		{Description: "Détartrage", MontantHT: 80},
	}
	res, err := core.ProcessExtraction(llm.Extraction{Lignes: lines}, "INTEGRAL")
	if err != nil {
		t.Fatalf("ProcessExtraction: %v", err)
	}
	if len(res.Lines) != 4 {
		t.Errorf("processed %d lines, want 4", len(res.Lines))
	}
	if res.LineErrors != 1 {
		t.Errorf("line errors = %d, want 1", res.LineErrors)
	}
}

func TestProcessExtractionNoLines(t *testing.T) {
	core := testCore(t, false)

	_, err := core.ProcessExtraction(llm.Extraction{}, "PREMIUM")
	if !errors.Is(err, common.ErrExtractionFailed) {
		t.Fatalf("err = %v, want ErrExtractionFailed", err)
	}
}

func TestProcessExtractionUnknownFormula(t *testing.T) {
	core := testCore(t, false)

	res, err := core.ProcessExtraction(llm.Extraction{
		Lignes: []llm.InvoiceLine{{Description: "Consultation générale", MontantHT: 65}},
	}, "GOLD")
	if err != nil {
		t.Fatalf("ProcessExtraction: %v", err)
	}
	if res.FormulaUsed != string(constants.FormulaStart) {
		t.Errorf("formula used = %q, want START", res.FormulaUsed)
	}
	if !res.TotalReimbursed.IsZero() {
		t.Errorf("unknown formula reimbursed %s", res.TotalReimbursed)
	}
}

func TestProcessExtractionWithRuleTable(t *testing.T) {
	core := testCore(t, true)

	res, err := core.ProcessExtraction(llm.Extraction{
		Lignes: []llm.InvoiceLine{
			{Description: "Consultation générale", MontantHT: 65},
			{Description: "Pension chenil", MontantHT: 120}, // no rule covers boarding
		},
	}, "INTEGRAL")
	if err != nil {
		t.Fatalf("ProcessExtraction: %v", err)
	}
	if len(res.Lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(res.Lines))
	}
	if !res.Lines[0].AmountReimbursed.Equal(dec("32.5")) {
		t.Errorf("covered line reimbursed = %s, want 32.5", res.Lines[0].AmountReimbursed)
	}
	if !res.Lines[1].AmountReimbursed.IsZero() {
		t.Errorf("uncovered line reimbursed = %s, want 0", res.Lines[1].AmountReimbursed)
	}
	if res.Lines[1].Note == "" {
		t.Error("uncovered line should carry a note")
	}
	if res.LineErrors != 0 {
		t.Errorf("rule miss must not count as a line error, got %d", res.LineErrors)
	}
}

// stubs for the file pipeline

type stubOCR struct {
	res ocr.ExtractionResult
	err error
}

func (s stubOCR) Extract(context.Context, string) (ocr.ExtractionResult, error) {
	return s.res, s.err
}

type stubExtractor struct {
	ext llm.Extraction
	err error
}

func (s stubExtractor) ExtractLines(context.Context, llm.ExtractRequest) (llm.Extraction, []byte, error) {
	return s.ext, nil, s.err
}

func TestProcessFile(t *testing.T) {
	core := testCore(t, false)
	fp := NewFileProcessor(testLogger(),
		stubOCR{res: ocr.ExtractionResult{Text: "Consultation générale 35,00", Method: "pdf-text", Pages: 1, Confidence: 0.8}},
		stubExtractor{ext: llm.Extraction{
			Lignes:       []llm.InvoiceLine{{Description: "Consultation générale", MontantHT: 35}},
			MontantTotal: 35,
		}},
		core,
	)

	res, ocrRes, err := fp.ProcessFile(context.Background(), "/tmp/facture.pdf", "INTEGRAL")
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if ocrRes.Method != "pdf-text" {
		t.Errorf("ocr method = %q", ocrRes.Method)
	}
	if !res.TotalReimbursed.Equal(dec("17.5")) {
		t.Errorf("total reimbursed = %s, want 17.5", res.TotalReimbursed)
	}
}

func TestProcessFileOCRFailure(t *testing.T) {
	core := testCore(t, false)
	fp := NewFileProcessor(testLogger(),
		stubOCR{err: fmt.Errorf("tesseract: exit status 1")},
		stubExtractor{},
		core,
	)
	if _, _, err := fp.ProcessFile(context.Background(), "/tmp/facture.pdf", "INTEGRAL"); err == nil {
		t.Fatal("expected an error")
	}
}
