package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/entity"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/repository"
)

// Service is a tiny façade over the invoice repository that produces
// XLSX reimbursement statements.
type Service struct {
	invoices repository.InvoiceRepository
	logger   *slog.Logger
}

func NewService(invoices repository.InvoiceRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{invoices: invoices, logger: logger}
}

// ExportStatementXLSX returns an XLSX workbook (as bytes) for the given
// date window. If only from is provided -> from..today (inclusive).
// If neither is provided -> all processed invoices.
func (s *Service) ExportStatementXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	var fromDate, toDate *time.Time
	if from != nil {
		f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
		fromDate = &f
	}
	if to != nil {
		t := time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, 0, time.UTC)
		toDate = &t
	}
	if fromDate != nil && toDate == nil {
		now := time.Now().UTC()
		t := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, time.UTC)
		toDate = &t
	}

	invoices, err := s.invoices.List(ctx, fromDate, toDate, 0)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}
	return s.writeWorkbook(invoices, start)
}

func (s *Service) writeWorkbook(invoices []*entity.Invoice, start time.Time) ([]byte, error) {
	f := excelize.NewFile()
	const sheet = "Remboursements"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	// drop the default sheet excelize creates
	if idx, _ := f.GetSheetIndex("Sheet1"); idx != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	headers := []string{
		"Date",
		"Facture",
		"Client",
		"Animal",
		"Formule",
		"Libellé",
		"Code acte",
		"Accident",
		"Montant facturé",
		"Taux (%)",
		"Montant remboursé",
		"Reste à charge",
		"Note",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	write := func(row, col int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	row := 2
	for _, inv := range invoices {
		client := clientField(inv, "nom_proprietaire")
		for _, l := range inv.Lines {
			animal := l.AnimalUID
			if animal == "" {
				animal = clientField(inv, "nom_animal")
			}
			write(row, 1, inv.CreatedAt.Format("2006-01-02"))
			write(row, 2, inv.SourcePath)
			write(row, 3, client)
			write(row, 4, animal)
			write(row, 5, inv.Formula)
			write(row, 6, l.RawLabel)
			write(row, 7, l.Code)
			write(row, 8, boolFR(l.IsAccident))
			write(row, 9, l.AmountBilled.String())
			write(row, 10, l.RateApplied)
			write(row, 11, l.AmountReimbursed.String())
			write(row, 12, l.AmountRemaining.String())
			write(row, 13, l.Note)
			row++
		}
		// invoice totals line
		write(row, 6, "TOTAL")
		write(row, 9, inv.TotalBilled.String())
		write(row, 11, inv.TotalReimbursed.String())
		write(row, 12, inv.TotalRemaining.String())
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 12)
	_ = f.SetColWidth(sheet, "B", "B", 40)
	_ = f.SetColWidth(sheet, "C", "D", 20)
	_ = f.SetColWidth(sheet, "E", "E", 16)
	_ = f.SetColWidth(sheet, "F", "F", 36)
	_ = f.SetColWidth(sheet, "G", "G", 26)
	_ = f.SetColWidth(sheet, "I", "L", 16)
	_ = f.SetColWidth(sheet, "M", "M", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"invoices", len(invoices),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// clientField pulls a string value out of the extraction's client info,
// which is carried opaquely and may hold anything.
func clientField(inv *entity.Invoice, key string) string {
	if inv.ClientInfo == nil {
		return ""
	}
	if v, ok := inv.ClientInfo[key].(string); ok {
		return v
	}
	return ""
}

func boolFR(b bool) string {
	if b {
		return "oui"
	}
	return "non"
}
