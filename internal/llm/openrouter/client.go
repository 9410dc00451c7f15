package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/llm"
)

// ExtractLines implements llm.LineExtractor against the OpenRouter
// chat/completions API. The primary model is tried first; on any
// failure (transport, bad JSON, schema violation) the secondary model
// gets one full attempt before the error is returned.
func (c *Client) ExtractLines(ctx context.Context, req llm.ExtractRequest) (llm.Extraction, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.PrimaryModel,
		"temp", c.cfg.Temperature,
		"text_len", len(req.OCRText),
		"filename_hint", req.FilenameHint,
		"prep_confidence", req.PrepConfidence,
	)

	out, raw, err := c.extractWith(ctx, rid, c.cfg.PrimaryModel, false, req)
	if err == nil {
		c.log.Info("llm.extract.ok",
			"req_id", rid, "model", c.cfg.PrimaryModel,
			"lignes", len(out.Lignes), "montant_total", out.MontantTotal,
			"elapsed_ms", time.Since(start).Milliseconds())
		return out, raw, nil
	}
	if c.cfg.SecondaryModel == "" {
		return llm.Extraction{}, raw, err
	}

	c.log.Warn("llm.extract.fallback",
		"req_id", rid, "primary_model", c.cfg.PrimaryModel,
		"secondary_model", c.cfg.SecondaryModel, "error", err)

	out, raw, err = c.extractWith(ctx, rid, c.cfg.SecondaryModel, true, req)
	if err != nil {
		c.log.Error("llm.extract.failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return llm.Extraction{}, raw, err
	}
	c.log.Info("llm.extract.ok",
		"req_id", rid, "model", c.cfg.SecondaryModel,
		"lignes", len(out.Lignes), "montant_total", out.MontantTotal,
		"elapsed_ms", time.Since(start).Milliseconds())
	return out, raw, nil
}

func (c *Client) extractWith(ctx context.Context, rid, model string, detailed bool, req llm.ExtractRequest) (llm.Extraction, []byte, error) {
	body := map[string]any{
		"model":       model,
		"temperature": c.cfg.Temperature,
		"max_tokens":  c.cfg.MaxTokens,
		"messages":    llm.BuildMessages(req.OCRText, detailed),
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	raw, _, err := llm.SendJSON(ctx, c.httpClient, endpoint, body, headers, c.cfg.MaxRetries, c.log)
	if err != nil {
		return llm.Extraction{}, raw, fmt.Errorf("openrouter call (%s): %w", model, err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return llm.Extraction{}, raw, fmt.Errorf("decode openrouter response: %w", err)
	}
	if len(cc.Choices) == 0 {
		return llm.Extraction{}, raw, fmt.Errorf("no choices in openrouter response")
	}
	content := strings.TrimSpace(cc.Choices[0].Message.Content)

	block, err := llm.ExtractJSONBlock(content)
	if err != nil {
		return llm.Extraction{}, []byte(content), fmt.Errorf("%s: %w", model, err)
	}

	cleaned, _, err := llm.NormalizeAndSanitizeJSON(block, c.log)
	if err != nil {
		return llm.Extraction{}, block, fmt.Errorf("sanitize (%s): %w", model, err)
	}

	schema := llm.BuildInvoiceJSONSchema()
	if err := llm.ValidateJSONAgainstSchema(schema, cleaned); err != nil {
		c.log.Error("llm.extract.schema_validation_failed",
			"req_id", rid, "model", model, "error", err, "content", string(cleaned))
		return llm.Extraction{}, cleaned, fmt.Errorf("schema validation failed: %w", err)
	}

	var out llm.Extraction
	if err := json.Unmarshal(cleaned, &out); err != nil {
		return llm.Extraction{}, cleaned, fmt.Errorf("unmarshal extraction: %w", err)
	}
	return out, cleaned, nil
}
