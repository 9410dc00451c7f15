package processor

import (
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/KaliFly/pennypet-invoice-llm-demo/constants"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/common"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/coverage"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/llm"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/metrics"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/normalize"
)

// LineResult is one processed invoice line.
type LineResult struct {
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

// InvoiceResult aggregates the per-line results into invoice totals.
type InvoiceResult struct {
	Lines           []LineResult    `json:"lignes"`
	TotalBilled     decimal.Decimal `json:"total_facture"`
	TotalReimbursed decimal.Decimal `json:"total_rembourse"`
	TotalRemaining  decimal.Decimal `json:"reste_a_charge"`
	FormulaUsed     string          `json:"formule_utilisee"`
	LineErrors      int             `json:"erreurs_lignes"`
	ClientInfo      map[string]any  `json:"informations_client,omitempty"`
}

// Core runs the in-memory half of the pipeline: label normalization,
// accident detection and reimbursement, line by line. It holds no I/O.
type Core struct {
	normalizer *normalize.Normalizer
	rules      *coverage.RuleEngine // nil -> the four fixed formulas
	logger     *slog.Logger
}

func NewCore(n *normalize.Normalizer, rules *coverage.RuleEngine, logger *slog.Logger) *Core {
	if logger == nil {
		logger = slog.Default()
	}
	return &Core{normalizer: n, rules: rules, logger: logger}
}

// ProcessExtraction turns an LLM extraction into an invoice result.
// Lines with a non-positive amount are skipped and counted as line
// errors; an extraction with no lines at all is a whole-invoice
// failure. A skipped line never aborts the batch.
func (c *Core) ProcessExtraction(ext llm.Extraction, formulaName string) (InvoiceResult, error) {
	formula, known := constants.CanonicalizeFormula(formulaName)
	if !known {
		c.logger.Warn("unknown formula, defaulting to zero coverage",
			"formula", formulaName, "fallback", string(formula))
	}

	res := InvoiceResult{
		Lines:           make([]LineResult, 0, len(ext.Lignes)),
		TotalBilled:     decimal.Zero,
		TotalReimbursed: decimal.Zero,
		TotalRemaining:  decimal.Zero,
		FormulaUsed:     string(formula),
		ClientInfo:      ext.InformationsClient,
	}

	if len(ext.Lignes) == 0 {
		return res, common.WrapError(common.ErrExtractionFailed, "extraction returned no lines")
	}

	for i, line := range ext.Lignes {
		amount := decimal.NewFromFloat(line.MontantHT)
		if !amount.IsPositive() {
			c.logger.Warn("skipping line with non-positive amount",
				"position", i, "label", line.Description, "amount", line.MontantHT)
			res.LineErrors++
			continue
		}

		code := c.normalizer.Normalize(line.Description)
		metrics.InvoiceLinesClassifiedTotal.WithLabelValues(c.normalizer.Kind(code)).Inc()
		isAccident := normalize.IsAccident(line.Description)

		var cov coverage.Result
		if c.rules != nil {
			var err error
			cov, err = c.rules.ComputeWithRules(amount, formula, code, isAccident)
			if err != nil && !errors.Is(err, common.ErrNoRuleFound) {
				c.logger.Error("line reimbursement failed",
					"position", i, "code", code, "error", err)
				res.LineErrors++
				continue
			}
			if errors.Is(err, common.ErrNoRuleFound) {
				c.logger.Warn("no coverage rule for line",
					"position", i, "code", code, "formula", string(formula))
			}
		} else {
			cov = coverage.Compute(amount, formula, isAccident)
		}

		res.Lines = append(res.Lines, LineResult{
			AnimalUID:        line.AnimalUID,
			RawLabel:         line.Description,
			Code:             code,
			IsAccident:       isAccident,
			AmountBilled:     cov.AmountBilled,
			RateApplied:      cov.RateApplied,
			AmountReimbursed: cov.AmountReimbursed,
			AmountRemaining:  cov.AmountRemaining,
			Note:             cov.Note,
		})
		res.TotalBilled = res.TotalBilled.Add(cov.AmountBilled)
		res.TotalReimbursed = res.TotalReimbursed.Add(cov.AmountReimbursed)
	}

	res.TotalRemaining = res.TotalBilled.Sub(res.TotalReimbursed)
	return res, nil
}
