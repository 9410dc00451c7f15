package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice is one processed veterinary invoice for data transfer between layers.
type Invoice struct {
	ID              uuid.UUID       `json:"id"`
	SourcePath      string          `json:"source_path,omitempty"`
	Formula         string          `json:"formule"`
	Status          string          `json:"status"`
	TotalBilled     decimal.Decimal `json:"total_facture"`
	TotalReimbursed decimal.Decimal `json:"total_rembourse"`
	TotalRemaining  decimal.Decimal `json:"reste_a_charge"`
	LineErrors      int             `json:"erreurs_lignes"`
	ClientInfo      map[string]any  `json:"informations_client,omitempty"`
	OCRMethod       string          `json:"ocr_method,omitempty"`
	OCRConfidence   float32         `json:"ocr_confidence,omitempty"`
	ErrorMessage    *string         `json:"error_message,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	Lines           []InvoiceLine   `json:"lignes"`
}

// InvoiceLine is one reimbursed invoice line.
type InvoiceLine struct {
	ID               uuid.UUID       `json:"id"`
	InvoiceID        uuid.UUID       `json:"invoice_id"`
	Position         int             `json:"position"`
	AnimalUID        string          `json:"animal_uid,omitempty"`
	RawLabel         string          `json:"libelle"`
	Code             string          `json:"code_acte"`
	IsAccident       bool            `json:"accident"`
	AmountBilled     decimal.Decimal `json:"montant_facture"`
	RateApplied      float64         `json:"taux_applique"`
	AmountReimbursed decimal.Decimal `json:"montant_rembourse"`
	AmountRemaining  decimal.Decimal `json:"reste_a_charge"`
	Note             string          `json:"note,omitempty"`
}
