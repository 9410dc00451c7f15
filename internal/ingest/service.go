package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/KaliFly/pennypet-invoice-llm-demo/constants"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/async"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/entity"
	processor "github.com/KaliFly/pennypet-invoice-llm-demo/internal/pipeline"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/repository"
)

type FileResult struct {
	Path string
	ID   string
	Err  string
}

type DirStats struct {
	Scanned   uint32
	Matched   uint32
	Succeeded uint32
	Failed    uint32
}

// Service feeds discovered invoice documents through the pipeline and,
// when a repository is wired, persists each result.
type Service struct {
	Logger    *slog.Logger
	Processor *processor.FileProcessor
	Invoices  repository.InvoiceRepository // nil -> process only
	Formula   string
}

func NewService(logger *slog.Logger, proc *processor.FileProcessor, invoices repository.InvoiceRepository, formula string) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Logger: logger, Processor: proc, Invoices: invoices, Formula: formula}
}

// ProcessPath runs one document end to end and returns the stored invoice.
func (s *Service) ProcessPath(ctx context.Context, path string) (*entity.Invoice, error) {
	res, ocrRes, err := s.Processor.ProcessFile(ctx, path, s.Formula)

	inv := &entity.Invoice{
		SourcePath:      path,
		Formula:         res.FormulaUsed,
		Status:          string(constants.JobStatusDone),
		TotalBilled:     res.TotalBilled,
		TotalReimbursed: res.TotalReimbursed,
		TotalRemaining:  res.TotalRemaining,
		LineErrors:      res.LineErrors,
		ClientInfo:      res.ClientInfo,
		OCRMethod:       ocrRes.Method,
		OCRConfidence:   ocrRes.Confidence,
		CreatedAt:       time.Now().UTC(),
	}
	if err != nil {
		msg := err.Error()
		inv.Status = string(constants.JobStatusFailed)
		inv.ErrorMessage = &msg
	}
	for i, l := range res.Lines {
		inv.Lines = append(inv.Lines, entity.InvoiceLine{
			Position:         i,
			AnimalUID:        l.AnimalUID,
			RawLabel:         l.RawLabel,
			Code:             l.Code,
			IsAccident:       l.IsAccident,
			AmountBilled:     l.AmountBilled,
			RateApplied:      l.RateApplied,
			AmountReimbursed: l.AmountReimbursed,
			AmountRemaining:  l.AmountRemaining,
			Note:             l.Note,
		})
	}

	if s.Invoices != nil {
		if dbErr := s.Invoices.Create(ctx, inv); dbErr != nil {
			s.Logger.Error("failed to persist invoice", "path", path, "error", dbErr)
			if err == nil {
				err = dbErr
			}
		}
	}
	return inv, err
}

// IngestDirectory walks root and processes every allowed document.
// Per-file failures are collected, never fatal for the walk.
func (s *Service) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []FileResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil // continue walking
		}
		if skipHidden && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := constants.AllowedExtensions[constants.NormalizeExt(filepath.Ext(path))]; !ok {
			return nil
		}
		stats.Matched++

		inv, perr := s.ProcessPath(ctx, path)
		if perr != nil {
			results = append(results, FileResult{Path: path, ID: inv.ID.String(), Err: perr.Error()})
			stats.Failed++
			return nil
		}
		results = append(results, FileResult{Path: path, ID: inv.ID.String()})
		stats.Succeeded++
		return nil
	})
	if err != nil {
		return results, stats, err
	}
	return results, stats, nil
}

// Process satisfies async.Processor so watcher events can fan out to a
// worker pool.
func (s *Service) Process(ctx context.Context, path string) error {
	_, err := s.ProcessPath(ctx, path)
	return err
}

// Watch consumes watcher events until ctx is cancelled, fanning the
// documents out to a bounded worker queue. initialScan emits the files
// already present under the roots; pass false when a directory pass
// just processed them, or every existing invoice is stored twice.
func (s *Service) Watch(ctx context.Context, roots []string, debounce time.Duration, initialScan bool) error {
	evCh, errCh, err := StartWatcher(ctx, WatchConfig{
		Roots:       roots,
		InitialScan: initialScan,
		Debounce:    debounce,
	})
	if err != nil {
		return err
	}

	queue := async.NewQueue(s, s.Logger)
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		queue.Shutdown(drainCtx)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case path, ok := <-evCh:
			if !ok {
				return nil
			}
			if qerr := queue.Enqueue(ctx, async.Job{Path: path, SubmittedAt: time.Now()}); qerr != nil {
				s.Logger.Error("failed to queue document", "path", path, "error", qerr)
			}
		case werr, ok := <-errCh:
			if ok && werr != nil {
				s.Logger.Error("watcher error", "error", werr)
			}
		}
	}
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
