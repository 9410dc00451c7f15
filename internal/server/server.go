package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/common"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/export"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/ingest"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/metrics"
	processor "github.com/KaliFly/pennypet-invoice-llm-demo/internal/pipeline"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/repository"
)

// Server wires the HTTP API in front of the invoice pipeline.
type Server struct {
	logger   *slog.Logger
	core     *processor.Core
	ingestor *ingest.Service // nil when no OCR/LLM collaborators are configured
	invoices repository.InvoiceRepository
	exporter *export.Service
	db       *repository.DB
}

func New(logger *slog.Logger, core *processor.Core, ingestor *ingest.Service, invoices repository.InvoiceRepository, exporter *export.Service, db *repository.DB) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger:   logger,
		core:     core,
		ingestor: ingestor,
		invoices: invoices,
		exporter: exporter,
		db:       db,
	}
}

// Router assembles the chi router with the full middleware stack.
func (s *Server) Router(limiter *RateLimiter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Metrics)
	if limiter != nil {
		r.Use(limiter.Middleware)
	}

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/formulas", s.handleListFormulas)
		r.Post("/reimbursements/simulate", s.handleSimulate)
		r.Post("/invoices/process", s.handleProcessInvoice)
		r.Get("/invoices", s.handleListInvoices)
		r.Get("/invoices/export", s.handleExportInvoices)
		r.Get("/invoices/{id}", s.handleGetInvoice)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"remote", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.HealthCheck(r.Context(), 2*time.Second); err != nil {
			s.writeError(w, common.WrapError(common.ErrInternal, "database unreachable"))
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
