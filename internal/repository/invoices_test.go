package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/common"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/entity"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := Open(context.Background(), Config{DSN: ":memory:"}, logger)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

func sampleInvoice() *entity.Invoice {
	return &entity.Invoice{
		SourcePath:      "/inbox/facture-117.pdf",
		Formula:         "INTEGRAL",
		Status:          "DONE",
		TotalBilled:     decimal.RequireFromString("57.80"),
		TotalReimbursed: decimal.RequireFromString("28.90"),
		TotalRemaining:  decimal.RequireFromString("28.90"),
		ClientInfo:      map[string]any{"pet_name": "Caramel"},
		OCRMethod:       "pdf-text",
		OCRConfidence:   0.85,
		Lines: []entity.InvoiceLine{
			{
				Position:         0,
				RawLabel:         "Consultation générale",
				Code:             "CONSULTATION_GENERALE",
				AmountBilled:     decimal.RequireFromString("35.00"),
				RateApplied:      50,
				AmountReimbursed: decimal.RequireFromString("17.50"),
				AmountRemaining:  decimal.RequireFromString("17.50"),
			},
			{
				Position:         1,
				RawLabel:         "Metacam 10ml",
				Code:             "MEDICAMENTS",
				AmountBilled:     decimal.RequireFromString("22.80"),
				RateApplied:      50,
				AmountReimbursed: decimal.RequireFromString("11.40"),
				AmountRemaining:  decimal.RequireFromString("11.40"),
			},
		},
	}
}

func TestInvoiceRoundTrip(t *testing.T) {
	db := testDB(t)
	repo := NewInvoiceRepository(db, nil)
	ctx := context.Background()

	inv := sampleInvoice()
	if err := repo.Create(ctx, inv); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if inv.ID == uuid.Nil {
		t.Fatal("Create should assign an ID")
	}

	got, err := repo.GetByID(ctx, inv.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !got.TotalBilled.Equal(inv.TotalBilled) {
		t.Errorf("total billed = %s, want %s", got.TotalBilled, inv.TotalBilled)
	}
	if got.Formula != "INTEGRAL" || got.Status != "DONE" {
		t.Errorf("unexpected invoice: %+v", got)
	}
	if got.ClientInfo["pet_name"] != "Caramel" {
		t.Errorf("client info lost: %v", got.ClientInfo)
	}
	if len(got.Lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(got.Lines))
	}
	if got.Lines[0].RawLabel != "Consultation générale" {
		t.Errorf("line order wrong: %+v", got.Lines[0])
	}
	if !got.Lines[1].AmountReimbursed.Equal(decimal.RequireFromString("11.40")) {
		t.Errorf("line amount = %s, want 11.40", got.Lines[1].AmountReimbursed)
	}
}

func TestGetByIDNotFound(t *testing.T) {
	db := testDB(t)
	repo := NewInvoiceRepository(db, nil)

	_, err := repo.GetByID(context.Background(), uuid.New())
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListFiltersAndOrders(t *testing.T) {
	db := testDB(t)
	repo := NewInvoiceRepository(db, nil)
	ctx := context.Background()

	old := sampleInvoice()
	old.CreatedAt = time.Date(2023, 1, 10, 12, 0, 0, 0, time.UTC)
	recent := sampleInvoice()
	recent.CreatedAt = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	for _, inv := range []*entity.Invoice{old, recent} {
		if err := repo.Create(ctx, inv); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	all, err := repo.List(ctx, nil, nil, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d invoices, want 2", len(all))
	}
	if !all[0].CreatedAt.After(all[1].CreatedAt) {
		t.Error("expected newest first")
	}

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	filtered, err := repo.List(ctx, &from, nil, 0)
	if err != nil {
		t.Fatalf("List(from): %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != recent.ID {
		t.Fatalf("filter miss: %d invoices", len(filtered))
	}
}
