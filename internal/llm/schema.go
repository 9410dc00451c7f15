package llm

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildInvoiceJSONSchema returns the extraction contract as a JSON-Schema
// (draft 2020-12 subset). It is embedded into the prompt and used locally
// to validate what comes back.
func BuildInvoiceJSONSchema() map[string]any {
	line := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"animal_uid":  map[string]any{"type": "string"},
			"montant_ht":  map[string]any{"type": "number"},
			"description": map[string]any{"type": "string"},
		},
		"required": []string{"montant_ht", "description"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"lignes": map[string]any{
				"type":  "array",
				"items": line,
			},
			"montant_total":       map[string]any{"type": "number"},
			"informations_client": map[string]any{"type": "object"},
		},
		"required": []string{"lignes", "montant_total"},
	}
}

// ValidateJSONAgainstSchema compiles the schema map and validates doc
// against it.
func ValidateJSONAgainstSchema(schema map[string]any, doc []byte) error {
	raw, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiled, err := jsonschema.CompileString("invoice.schema.json", string(raw))
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(doc, &v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return compiled.Validate(v)
}
