package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/common"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/ocr"
)

// runocr extracts text from a single invoice document and prints the
// result. Useful for checking tesseract/poppler setup before wiring the
// full pipeline.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runocr <invoice-file>")
		os.Exit(2)
	}
	path := os.Args[1]
	if _, err := os.Stat(path); err != nil {
		logger.Error("file not readable", "path", path, "error", err)
		os.Exit(1)
	}

	cfg := common.LoadConfig()
	extractor := ocr.NewExtractor(ocr.Config{
		TesseractLang:       cfg.OCR.TesseractLang,
		TessdataDir:         cfg.OCR.TessdataDir,
		DPI:                 cfg.OCR.DPI,
		MaxPages:            cfg.OCR.MaxPages,
		EnableTSVConfidence: true,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res, err := extractor.Extract(ctx, path)
	if err != nil {
		logger.Error("extraction failed", "path", path, "error", err)
		os.Exit(1)
	}

	logger.Info("extraction done",
		"source_type", res.SourceType,
		"method", res.Method,
		"pages", res.Pages,
		"language", res.Language,
		"confidence", fmt.Sprintf("%.2f", res.Confidence),
		"duration_ms", res.Duration.Milliseconds(),
		"warnings", res.Warnings,
	)
	fmt.Println(res.Text)
}
