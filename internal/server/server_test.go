package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/common"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/entity"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/export"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/lexicon"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/normalize"
	processor "github.com/KaliFly/pennypet-invoice-llm-demo/internal/pipeline"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testServer(t *testing.T) (*Server, repository.InvoiceRepository) {
	t.Helper()
	store, err := lexicon.Load(common.LexiconConfig{}, testLogger())
	if err != nil {
		t.Fatalf("lexicon.Load: %v", err)
	}
	core := processor.NewCore(normalize.New(store, testLogger()), nil, testLogger())

	db, err := repository.Open(context.Background(), repository.Config{DSN: ":memory:"}, testLogger())
	if err != nil {
		t.Fatalf("repository.Open: %v", err)
	}
	t.Cleanup(db.Close)
	invoices := repository.NewInvoiceRepository(db, testLogger())
	exporter := export.NewService(invoices, testLogger())

	return New(testLogger(), core, nil, invoices, exporter, db), invoices
}

func TestHealthz(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.Router(nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestSimulate(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.Router(nil))
	defer ts.Close()

	body := `{
		"formule": "PREMIUM",
		"lignes": [
			{"description": "Fracture patte avant – chirurgie", "montant_ht": 800.0}
		]
	}`
	resp, err := http.Post(ts.URL+"/v1/reimbursements/simulate", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST simulate: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var out processor.InvoiceResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Lines) != 1 {
		t.Fatalf("got %d lines", len(out.Lines))
	}
	if !out.Lines[0].AmountReimbursed.Equal(decimal.RequireFromString("500")) {
		t.Errorf("reimbursed = %s, want 500", out.Lines[0].AmountReimbursed)
	}
	if !out.Lines[0].IsAccident {
		t.Error("expected the fracture line to be flagged as accident")
	}
}

func TestSimulateEmptyExtraction(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.Router(nil))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/reimbursements/simulate", "application/json",
		strings.NewReader(`{"formule":"START","lignes":[]}`))
	if err != nil {
		t.Fatalf("POST simulate: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
}

func TestSimulateBadJSON(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.Router(nil))
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/reimbursements/simulate", "application/json",
		strings.NewReader(`{not json`))
	if err != nil {
		t.Fatalf("POST simulate: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestListFormulas(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.Router(nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/formulas")
	if err != nil {
		t.Fatalf("GET formulas: %v", err)
	}
	defer resp.Body.Close()
	var out struct {
		Formules []struct {
			Nom  string  `json:"nom"`
			Taux float64 `json:"taux_remboursement"`
		} `json:"formules"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Formules) != 4 {
		t.Fatalf("got %d formulas, want 4", len(out.Formules))
	}
	if out.Formules[0].Nom != "START" || out.Formules[0].Taux != 0 {
		t.Errorf("first formula = %+v", out.Formules[0])
	}
}

func TestListAndGetInvoices(t *testing.T) {
	srv, invoices := testServer(t)
	ts := httptest.NewServer(srv.Router(nil))
	defer ts.Close()

	inv := &entity.Invoice{
		Formula:         "INTEGRAL",
		Status:          "DONE",
		TotalBilled:     decimal.RequireFromString("100"),
		TotalReimbursed: decimal.RequireFromString("50"),
		TotalRemaining:  decimal.RequireFromString("50"),
	}
	if err := invoices.Create(context.Background(), inv); err != nil {
		t.Fatalf("Create: %v", err)
	}

	resp, err := http.Get(ts.URL + "/v1/invoices")
	if err != nil {
		t.Fatalf("GET invoices: %v", err)
	}
	defer resp.Body.Close()
	var list struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Count != 1 {
		t.Errorf("count = %d, want 1", list.Count)
	}

	resp2, err := http.Get(ts.URL + "/v1/invoices/" + inv.ID.String())
	if err != nil {
		t.Fatalf("GET invoice: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp2.StatusCode)
	}

	resp3, err := http.Get(ts.URL + "/v1/invoices/" + uuid.New().String())
	if err != nil {
		t.Fatalf("GET missing invoice: %v", err)
	}
	defer resp3.Body.Close()
	if resp3.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp3.StatusCode)
	}
}

func TestExportEndpoint(t *testing.T) {
	srv, _ := testServer(t)
	ts := httptest.NewServer(srv.Router(nil))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/invoices/export")
	if err != nil {
		t.Fatalf("GET export: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("content type = %q", ct)
	}
}

func TestRateLimiter(t *testing.T) {
	srv, _ := testServer(t)
	limiter := NewRateLimiter(1, 15)
	router := srv.Router(limiter)

	// each /v1 request costs 10 tokens; the second must be rejected
	do := func() int {
		req := httptest.NewRequest(http.MethodGet, "/v1/formulas", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := do(); code != http.StatusOK {
		t.Fatalf("first request status = %d", code)
	}
	if code := do(); code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", code)
	}

	// health probes are free and must not be limited
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "203.0.113.7:1234"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
}
