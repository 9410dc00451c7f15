package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/common"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/coverage"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/export"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/ingest"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/lexicon"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/llm/openrouter"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/normalize"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/ocr"
	processor "github.com/KaliFly/pennypet-invoice-llm-demo/internal/pipeline"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/repository"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/server"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := lexicon.Load(cfg.Lexicon, logger)
	if err != nil {
		logger.Error("loading lexicon tables", "error", err)
		os.Exit(1)
	}

	var rules *coverage.RuleEngine
	if useRules, _ := strconv.ParseBool(os.Getenv("RULES_MODE")); useRules {
		rules = coverage.NewRuleEngine(store.Rules)
		logger.Info("reimbursement rules mode enabled", "rules", len(store.Rules))
	}
	core := processor.NewCore(normalize.New(store, logger), rules, logger)

	var db *repository.DB
	var invoices repository.InvoiceRepository
	var exporter *export.Service
	if cfg.Database.DSN != "" {
		db, err = repository.Open(ctx, repository.Config{
			DSN:         cfg.Database.DSN,
			DialTimeout: cfg.Database.DialTimeout,
		}, logger)
		if err != nil {
			logger.Error("opening invoice store", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		invoices = repository.NewInvoiceRepository(db, logger)
		exporter = export.NewService(invoices, logger)
	} else {
		logger.Warn("DB_URL not set, running without persistence")
	}

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

	fileProc := processor.NewFileProcessor(logger, extractor, llmClient, core)
	ingestor := ingest.NewService(logger, fileProc, invoices, os.Getenv("DEFAULT_FORMULE"))

	limiter := server.NewRateLimiter(cfg.Server.RatePerSecond, cfg.Server.RateBurst)
	stopCleanup := make(chan struct{})
	limiter.StartCleanup(time.Minute, stopCleanup)
	defer close(stopCleanup)

	srv := server.New(logger, core, ingestor, invoices, exporter, db)
	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http serving", "addr", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("stopped")
}
