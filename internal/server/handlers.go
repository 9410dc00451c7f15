package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/KaliFly/pennypet-invoice-llm-demo/constants"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/common"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/coverage"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/llm"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/metrics"
)

const maxUploadBytes = 32 << 20

// simulateRequest is the body for POST /v1/reimbursements/simulate.
type simulateRequest struct {
	Formule            string            `json:"formule"`
	Lignes             []llm.InvoiceLine `json:"lignes"`
	InformationsClient map[string]any    `json:"informations_client,omitempty"`
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, common.WrapError(common.ErrInvalidInput, "invalid JSON body"))
		return
	}

	res, err := s.core.ProcessExtraction(llm.Extraction{
		Lignes:             req.Lignes,
		InformationsClient: req.InformationsClient,
	}, req.Formule)
	if err != nil {
		if errors.Is(err, common.ErrExtractionFailed) {
			s.writeError(w, err)
			return
		}
		s.writeError(w, common.WrapError(common.ErrInternal, err.Error()))
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleProcessInvoice(w http.ResponseWriter, r *http.Request) {
	if s.ingestor == nil {
		s.writeError(w, common.WrapError(common.ErrInvalidInput,
			"document processing is not configured on this server"))
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, common.WrapError(common.ErrInvalidInput, "invalid multipart body"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, common.WrapError(common.ErrInvalidInput, "missing 'file' part"))
		return
	}
	defer file.Close()

	ext := constants.NormalizeExt(filepath.Ext(header.Filename))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		s.writeError(w, common.WrapError(common.ErrInvalidInput,
			fmt.Sprintf("unsupported file type %q", ext)))
		return
	}

	tmp, err := os.CreateTemp("", "pennypet-upload-*."+ext)
	if err != nil {
		s.writeError(w, common.WrapError(common.ErrInternal, err.Error()))
		return
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()
	if _, err := io.Copy(tmp, file); err != nil {
		s.writeError(w, common.WrapError(common.ErrInternal, err.Error()))
		return
	}

	svc := s.ingestor
	if formule := strings.TrimSpace(r.FormValue("formule")); formule != "" {
		// per-request formula override; Service is cheap to copy
		sv := *s.ingestor
		sv.Formula = formule
		svc = &sv
	}

	start := time.Now()
	inv, err := svc.ProcessPath(r.Context(), tmp.Name())
	metrics.InvoiceProcessingDuration.Observe(time.Since(start).Seconds())
	metrics.InvoicesProcessedTotal.WithLabelValues(inv.Status).Inc()
	metrics.InvoiceLineErrorsTotal.Add(float64(inv.LineErrors))

	// report the uploaded name, not the temp path
	inv.SourcePath = header.Filename
	if err != nil {
		s.logger.Warn("invoice processing failed", "file", header.Filename, "error", err)
		s.writeJSON(w, common.HTTPStatus(err), inv)
		return
	}
	s.writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	if s.invoices == nil {
		s.writeError(w, common.WrapError(common.ErrInvalidInput, "no invoice store configured"))
		return
	}
	from, to, err := dateWindow(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			s.writeError(w, common.WrapError(common.ErrInvalidInput, "limit must be a positive integer"))
			return
		}
	}

	invoices, err := s.invoices.List(r.Context(), from, to, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices, "count": len(invoices)})
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	if s.invoices == nil {
		s.writeError(w, common.WrapError(common.ErrInvalidInput, "no invoice store configured"))
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, common.WrapError(common.ErrInvalidInput, "id must be a UUID"))
		return
	}
	inv, err := s.invoices.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleExportInvoices(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		s.writeError(w, common.WrapError(common.ErrInvalidInput, "export is not configured"))
		return
	}
	from, to, err := dateWindow(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	data, err := s.exporter.ExportStatementXLSX(r.Context(), from, to)
	if err != nil {
		s.writeError(w, common.WrapError(common.ErrInternal, err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=remboursements-%s.xlsx", time.Now().UTC().Format("2006-01-02")))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleListFormulas(w http.ResponseWriter, _ *http.Request) {
	type formulaView struct {
		Nom          string  `json:"nom"`
		Taux         float64 `json:"taux_remboursement"`
		Plafond      string  `json:"plafond_annuel"`
		AccidentSeul bool    `json:"accident_seulement"`
	}
	var out []formulaView
	for _, f := range coverage.Formulas() {
		out = append(out, formulaView{
			Nom:          string(f.Name),
			Taux:         f.RatePercent,
			Plafond:      f.AnnualCap.String(),
			AccidentSeul: f.AccidentOnly,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"formules": out})
}

// dateWindow parses optional from/to query params (YYYY-MM-DD).
func dateWindow(r *http.Request) (*time.Time, *time.Time, error) {
	var from, to *time.Time
	if v := strings.TrimSpace(r.URL.Query().Get("from")); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil, nil, common.WrapError(common.ErrInvalidInput, "from must be YYYY-MM-DD")
		}
		from = &t
	}
	if v := strings.TrimSpace(r.URL.Query().Get("to")); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil, nil, common.WrapError(common.ErrInvalidInput, "to must be YYYY-MM-DD")
		}
		t = t.Add(24*time.Hour - time.Nanosecond)
		to = &t
	}
	return from, to, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := common.HTTPStatus(err)
	if status >= 500 {
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
