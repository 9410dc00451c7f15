package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/common"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/lexicon"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/llm"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/normalize"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/ocr"
	processor "github.com/KaliFly/pennypet-invoice-llm-demo/internal/pipeline"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubOCR struct{}

func (stubOCR) Extract(context.Context, string) (ocr.ExtractionResult, error) {
	return ocr.ExtractionResult{Text: "Consultation générale 35,00 €", Method: "pdf-text", Pages: 1, Confidence: 0.9}, nil
}

type stubExtractor struct{}

func (stubExtractor) ExtractLines(context.Context, llm.ExtractRequest) (llm.Extraction, []byte, error) {
	return llm.Extraction{
		Lignes:       []llm.InvoiceLine{{Description: "Consultation générale", MontantHT: 35}},
		MontantTotal: 35,
	}, nil, nil
}

func testService(t *testing.T) (*Service, repository.InvoiceRepository) {
	t.Helper()
	store, err := lexicon.Load(common.LexiconConfig{}, testLogger())
	if err != nil {
		t.Fatalf("lexicon.Load: %v", err)
	}
	core := processor.NewCore(normalize.New(store, testLogger()), nil, testLogger())
	fp := processor.NewFileProcessor(testLogger(), stubOCR{}, stubExtractor{}, core)

	db, err := repository.Open(context.Background(), repository.Config{DSN: ":memory:"}, testLogger())
	if err != nil {
		t.Fatalf("repository.Open: %v", err)
	}
	t.Cleanup(db.Close)
	repo := repository.NewInvoiceRepository(db, testLogger())

	return NewService(testLogger(), fp, repo, "INTEGRAL"), repo
}

func TestIngestDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"facture-1.pdf", "facture-2.jpg", "notes.txt", ".hidden.pdf"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	svc, repo := testService(t)
	results, stats, err := svc.IngestDirectory(context.Background(), dir, true)
	if err != nil {
		t.Fatalf("IngestDirectory: %v", err)
	}
	if stats.Matched != 2 || stats.Succeeded != 2 || stats.Failed != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	stored, err := repo.List(context.Background(), nil, nil, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("stored %d invoices, want 2", len(stored))
	}
	for _, inv := range stored {
		if inv.Status != "DONE" {
			t.Errorf("status = %q, want DONE", inv.Status)
		}
		if len(inv.Lines) != 1 {
			t.Errorf("lines = %d, want 1", len(inv.Lines))
		}
	}
}

func TestProcessPathRecordsFailure(t *testing.T) {
	svc, repo := testService(t)
	// an extractor returning no lines makes the whole invoice fail
	svc.Processor = processor.NewFileProcessor(testLogger(), stubOCR{},
		emptyExtractor{}, coreOf(t))

	inv, err := svc.ProcessPath(context.Background(), "/tmp/facture.pdf")
	if err == nil {
		t.Fatal("expected an error")
	}
	if inv.Status != "FAILED" || inv.ErrorMessage == nil {
		t.Errorf("invoice = %+v", inv)
	}

	stored, err := repo.List(context.Background(), nil, nil, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("failed invoices should still be recorded, got %d", len(stored))
	}
}

type emptyExtractor struct{}

func (emptyExtractor) ExtractLines(context.Context, llm.ExtractRequest) (llm.Extraction, []byte, error) {
	return llm.Extraction{}, nil, nil
}

func coreOf(t *testing.T) *processor.Core {
	t.Helper()
	store, err := lexicon.Load(common.LexiconConfig{}, testLogger())
	if err != nil {
		t.Fatalf("lexicon.Load: %v", err)
	}
	return processor.NewCore(normalize.New(store, testLogger()), nil, testLogger())
}
