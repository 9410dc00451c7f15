package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/common"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/entity"
)

type InvoiceRepository interface {
	Create(ctx context.Context, inv *entity.Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Invoice, error)
	List(ctx context.Context, from, to *time.Time, limit int) ([]*entity.Invoice, error)
}

type invoiceRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewInvoiceRepository(db *DB, logger *slog.Logger) InvoiceRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &invoiceRepository{db: db, logger: logger}
}

// Create stores the invoice and its lines in one transaction. Amounts
// are stored as exact decimal strings.
func (r *invoiceRepository) Create(ctx context.Context, inv *entity.Invoice) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}

	var clientInfo []byte
	if inv.ClientInfo != nil {
		var err error
		clientInfo, err = json.Marshal(inv.ClientInfo)
		if err != nil {
			return common.WrapError(err, "encode client info")
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return common.WrapError(common.ErrDatabase, err.Error())
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, r.db.rebind(`
		INSERT INTO invoices
			(id, source_path, formula, status, total_billed, total_reimbursed,
			 total_remaining, line_errors, client_info, ocr_method,
			 ocr_confidence, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		inv.ID.String(), inv.SourcePath, inv.Formula, inv.Status,
		inv.TotalBilled.String(), inv.TotalReimbursed.String(),
		inv.TotalRemaining.String(), inv.LineErrors, nullableBytes(clientInfo),
		inv.OCRMethod, inv.OCRConfidence, inv.ErrorMessage,
		inv.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		r.logger.Error("failed to insert invoice", "invoice_id", inv.ID, "error", err)
		return common.WrapError(common.ErrDatabase, err.Error())
	}

	for i := range inv.Lines {
		l := &inv.Lines[i]
		if l.ID == uuid.Nil {
			l.ID = uuid.New()
		}
		l.InvoiceID = inv.ID
		_, err = tx.ExecContext(ctx, r.db.rebind(`
			INSERT INTO invoice_lines
				(id, invoice_id, position, animal_uid, raw_label, code,
				 is_accident, amount_billed, rate_applied, amount_reimbursed,
				 amount_remaining, note)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			l.ID.String(), l.InvoiceID.String(), l.Position, l.AnimalUID,
			l.RawLabel, l.Code, boolToInt(l.IsAccident),
			l.AmountBilled.String(), l.RateApplied,
			l.AmountReimbursed.String(), l.AmountRemaining.String(), l.Note)
		if err != nil {
			r.logger.Error("failed to insert invoice line",
				"invoice_id", inv.ID, "position", l.Position, "error", err)
			return common.WrapError(common.ErrDatabase, err.Error())
		}
	}

	if err := tx.Commit(); err != nil {
		return common.WrapError(common.ErrDatabase, err.Error())
	}
	return nil
}

func (r *invoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Invoice, error) {
	row := r.db.QueryRowContext(ctx, r.db.rebind(`
		SELECT id, source_path, formula, status, total_billed,
		       total_reimbursed, total_remaining, line_errors, client_info,
		       ocr_method, ocr_confidence, error_message, created_at
		FROM invoices WHERE id = ?`), id.String())

	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.WrapError(common.ErrNotFound, "invoice "+id.String())
		}
		return nil, common.WrapError(common.ErrDatabase, err.Error())
	}

	lines, err := r.linesFor(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Lines = lines
	return inv, nil
}

func (r *invoiceRepository) List(ctx context.Context, from, to *time.Time, limit int) ([]*entity.Invoice, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `
		SELECT id, source_path, formula, status, total_billed,
		       total_reimbursed, total_remaining, line_errors, client_info,
		       ocr_method, ocr_confidence, error_message, created_at
		FROM invoices WHERE 1=1`
	var args []any
	if from != nil {
		q += " AND created_at >= ?"
		args = append(args, from.UTC().Format(time.RFC3339Nano))
	}
	if to != nil {
		q += " AND created_at <= ?"
		args = append(args, to.UTC().Format(time.RFC3339Nano))
	}
	q += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, r.db.rebind(q), args...)
	if err != nil {
		r.logger.Error("failed to list invoices", "error", err)
		return nil, common.WrapError(common.ErrDatabase, err.Error())
	}
	defer rows.Close()

	var out []*entity.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, common.WrapError(common.ErrDatabase, err.Error())
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, common.WrapError(common.ErrDatabase, err.Error())
	}

	for _, inv := range out {
		lines, err := r.linesFor(ctx, inv.ID)
		if err != nil {
			return nil, err
		}
		inv.Lines = lines
	}
	return out, nil
}

func (r *invoiceRepository) linesFor(ctx context.Context, invoiceID uuid.UUID) ([]entity.InvoiceLine, error) {
	rows, err := r.db.QueryContext(ctx, r.db.rebind(`
		SELECT id, invoice_id, position, animal_uid, raw_label, code,
		       is_accident, amount_billed, rate_applied, amount_reimbursed,
		       amount_remaining, note
		FROM invoice_lines WHERE invoice_id = ? ORDER BY position`), invoiceID.String())
	if err != nil {
		return nil, common.WrapError(common.ErrDatabase, err.Error())
	}
	defer rows.Close()

	var lines []entity.InvoiceLine
	for rows.Next() {
		var (
			l                     entity.InvoiceLine
			idStr, invIDStr       string
			accident              int
			billed, reimb, remain string
		)
		if err := rows.Scan(&idStr, &invIDStr, &l.Position, &l.AnimalUID,
			&l.RawLabel, &l.Code, &accident, &billed, &l.RateApplied,
			&reimb, &remain, &l.Note); err != nil {
			return nil, common.WrapError(common.ErrDatabase, err.Error())
		}
		l.ID, _ = uuid.Parse(idStr)
		l.InvoiceID, _ = uuid.Parse(invIDStr)
		l.IsAccident = accident != 0
		if l.AmountBilled, err = decimal.NewFromString(billed); err != nil {
			return nil, common.WrapError(common.ErrDatabase, err.Error())
		}
		if l.AmountReimbursed, err = decimal.NewFromString(reimb); err != nil {
			return nil, common.WrapError(common.ErrDatabase, err.Error())
		}
		if l.AmountRemaining, err = decimal.NewFromString(remain); err != nil {
			return nil, common.WrapError(common.ErrDatabase, err.Error())
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*entity.Invoice, error) {
	var (
		inv                   entity.Invoice
		idStr, createdAt      string
		billed, reimb, remain string
		clientInfo            sql.NullString
	)
	err := row.Scan(&idStr, &inv.SourcePath, &inv.Formula, &inv.Status,
		&billed, &reimb, &remain, &inv.LineErrors, &clientInfo,
		&inv.OCRMethod, &inv.OCRConfidence, &inv.ErrorMessage, &createdAt)
	if err != nil {
		return nil, err
	}
	if inv.ID, err = uuid.Parse(idStr); err != nil {
		return nil, err
	}
	if inv.TotalBilled, err = decimal.NewFromString(billed); err != nil {
		return nil, err
	}
	if inv.TotalReimbursed, err = decimal.NewFromString(reimb); err != nil {
		return nil, err
	}
	if inv.TotalRemaining, err = decimal.NewFromString(remain); err != nil {
		return nil, err
	}
	if clientInfo.Valid && clientInfo.String != "" {
		if err := json.Unmarshal([]byte(clientInfo.String), &inv.ClientInfo); err != nil {
			return nil, err
		}
	}
	if inv.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	return &inv, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
