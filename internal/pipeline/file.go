package processor

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/llm"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/ocr"
)

// TextExtractor is the OCR boundary; satisfied by *ocr.Extractor.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (ocr.ExtractionResult, error)
}

// FileProcessor coordinates OCR (text extract) then LLM parse then the
// in-memory core. Persistence is the caller's concern.
type FileProcessor struct {
	Logger    *slog.Logger
	OCR       TextExtractor
	Extractor llm.LineExtractor
	Core      *Core
}

func NewFileProcessor(logger *slog.Logger, ocrx TextExtractor, ex llm.LineExtractor, core *Core) *FileProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileProcessor{Logger: logger, OCR: ocrx, Extractor: ex, Core: core}
}

// ProcessFile runs the full pipeline for one invoice document.
func (p *FileProcessor) ProcessFile(ctx context.Context, path, formula string) (InvoiceResult, ocr.ExtractionResult, error) {
	ocrRes, err := p.OCR.Extract(ctx, path)
	if err != nil {
		p.Logger.Error("processor.ocr.failed", "path", path, "err", err)
		return InvoiceResult{}, ocrRes, fmt.Errorf("ocr %s: %w", filepath.Base(path), err)
	}
	p.Logger.Info("processor.ocr.ok",
		"path", path,
		"method", ocrRes.Method,
		"pages", ocrRes.Pages,
		"confidence", ocrRes.Confidence,
	)

	ext, _, err := p.Extractor.ExtractLines(ctx, llm.ExtractRequest{
		OCRText:        ocrRes.Text,
		FilenameHint:   filepath.Base(path),
		PrepConfidence: ocrRes.Confidence,
	})
	if err != nil {
		p.Logger.Error("processor.llm.failed", "path", path, "err", err)
		return InvoiceResult{}, ocrRes, fmt.Errorf("extract %s: %w", filepath.Base(path), err)
	}
	p.Logger.Info("processor.llm.ok", "path", path, "lignes", len(ext.Lignes))

	res, err := p.Core.ProcessExtraction(ext, formula)
	if err != nil {
		p.Logger.Error("processor.core.failed", "path", path, "err", err)
		return res, ocrRes, err
	}
	p.Logger.Info("processor.core.ok",
		"path", path,
		"lignes", len(res.Lines),
		"line_errors", res.LineErrors,
		"total_rembourse", res.TotalReimbursed,
	)
	return res, ocrRes, nil
}
