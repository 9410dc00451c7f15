package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/common"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/export"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/ingest"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/lexicon"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/llm/openrouter"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/normalize"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/ocr"
	processor "github.com/KaliFly/pennypet-invoice-llm-demo/internal/pipeline"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir      = flag.String("dir", "", "directory of invoice documents to process (required)")
		watch    = flag.Bool("watch", false, "keep watching the directory after the initial pass")
		formule  = flag.String("formule", "", "policy formula applied to every invoice (START, PREMIUM, INTEGRAL, INTEGRAL_PLUS)")
		out      = flag.String("out", "", "output XLSX path (defaults to <dir>/../remboursements.xlsx)")
		inmem    = flag.Bool("inmem", false, "use an in-memory SQLite database")
		debounce = flag.Duration("debounce", 500*time.Millisecond, "watcher debounce window")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "remboursements.xlsx")
	}

	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if cfg.LLM.APIKey == "" {
		printError("Error: OPENROUTER_API_KEY is required\n")
		os.Exit(1)
	}

	ctx := context.Background()

	store, err := lexicon.Load(cfg.Lexicon, logger)
	if err != nil {
		logger.Error("loading lexicon tables", "error", err)
		os.Exit(1)
	}
	core := processor.NewCore(normalize.New(store, logger), nil, logger)

	dsn := cfg.Database.DSN
	if *inmem {
		dsn = ":memory:"
	}
	if dsn == "" {
		printError("Error: DB_URL is required (or pass --inmem)\n")
		os.Exit(1)
	}
	db, err := repository.Open(ctx, repository.Config{
		DSN:         dsn,
		DialTimeout: cfg.Database.DialTimeout,
	}, logger)
	if err != nil {
		logger.Error("opening invoice store", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	invoices := repository.NewInvoiceRepository(db, logger)

	extractor := ocr.NewExtractor(ocr.Config{
		TesseractLang: cfg.OCR.TesseractLang,
		TessdataDir:   cfg.OCR.TessdataDir,
		DPI:           cfg.OCR.DPI,
		MaxPages:      cfg.OCR.MaxPages,
	}, logger)
	llmClient := openrouter.NewClient(openrouter.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		PrimaryModel:   cfg.LLM.PrimaryModel,
		SecondaryModel: cfg.LLM.SecondaryModel,
		Temperature:    cfg.LLM.Temperature,
		Timeout:        cfg.LLM.Timeout,
		MaxRetries:     cfg.LLM.MaxRetries,
	}, logger)

	svc := ingest.NewService(logger, processor.NewFileProcessor(logger, extractor, llmClient, core), invoices, *formule)

	results, stats, err := svc.IngestDirectory(ctx, *dir, true)
	if err != nil {
		logger.Error("directory ingest failed", "dir", *dir, "error", err)
		os.Exit(1)
	}
	logger.Info("directory ingest done",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
	)
	for _, res := range results {
		if res.Err != "" {
			logger.Warn("invoice failed", "file", res.Path, "error", res.Err)
		}
	}

	if *watch {
		// the directory pass above already handled existing files
		logger.Info("watching for new invoices", "dir", *dir)
		if err := svc.Watch(ctx, []string{*dir}, *debounce, false); err != nil {
			logger.Error("watch failed", "error", err)
			os.Exit(1)
		}
		return
	}

	exporter := export.NewService(invoices, logger)
	data, err := exporter.ExportStatementXLSX(ctx, nil, nil)
	if err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		logger.Error("writing workbook", "path", *out, "error", err)
		os.Exit(1)
	}
	logger.Info("workbook written", "path", *out, "invoices", stats.Succeeded+stats.Failed)
}
