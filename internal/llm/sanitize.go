package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"strconv"
	"strings"
)

// Models wrap the payload in backticks, prose or markdown fences;
// we keep the outermost JSON object and drop the rest.
var reJSONBlock = regexp.MustCompile(`(?s)(\{.*\})`)

// ExtractJSONBlock pulls the JSON object out of a raw model response.
func ExtractJSONBlock(content string) ([]byte, error) {
	m := reJSONBlock.FindStringSubmatch(content)
	if m == nil {
		return nil, fmt.Errorf("no JSON object found in model response")
	}
	return []byte(m[1]), nil
}

// NormalizeAndSanitizeJSON
// - Coerces 'montant_ht'/'montant_total' strings ("12,50", "12.50 €") to numbers
// - Fills missing 'description' with "" and missing 'animal_uid' with ""
// - Removes unknown keys (strict additionalProperties = false friendliness)
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	var dropped []string

	for k := range maps.Clone(m) {
		switch k {
		case "lignes", "montant_total", "informations_client":
		default:
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	// informations_client is opaque passthrough, but must be an object
	if v, ok := m["informations_client"]; ok {
		if _, isObj := v.(map[string]any); !isObj {
			delete(m, "informations_client")
			dropped = append(dropped, "informations_client(type)")
		}
	}

	if _, ok := m["lignes"]; !ok {
		m["lignes"] = []any{}
		dropped = append(dropped, "lignes(missing)")
	}
	if lignes, ok := m["lignes"].([]any); ok {
		clean := make([]any, 0, len(lignes))
		for i, l := range lignes {
			lm, ok := l.(map[string]any)
			if !ok {
				dropped = append(dropped, fmt.Sprintf("lignes[%d](type)", i))
				continue
			}
			for k := range maps.Clone(lm) {
				switch k {
				case "animal_uid", "montant_ht", "description":
				default:
					delete(lm, k)
					dropped = append(dropped, fmt.Sprintf("lignes[%d].%s(unknown)", i, k))
				}
			}
			lm["montant_ht"] = coerceAmount(lm["montant_ht"])
			lm["animal_uid"] = coerceString(lm["animal_uid"])
			lm["description"] = coerceString(lm["description"])
			clean = append(clean, lm)
		}
		m["lignes"] = clean
	} else {
		m["lignes"] = []any{}
		dropped = append(dropped, "lignes(type)")
	}

	m["montant_total"] = coerceAmount(m["montant_total"])

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

// coerceAmount turns whatever the model produced into a float64.
// Unparseable values become 0; the pipeline later drops zero-amount lines.
func coerceAmount(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		s := strings.TrimSpace(t)
		s = strings.TrimSuffix(s, "€")
		s = strings.TrimSpace(strings.TrimSuffix(s, "EUR"))
		s = strings.ReplaceAll(s, ",", ".")
		s = strings.ReplaceAll(s, " ", "")
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return 0
	default:
		return 0
	}
}

func coerceString(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
