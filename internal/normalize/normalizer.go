// Package normalize classifies free-text invoice line labels into
// canonical codes: a specific act code, the MEDICAMENTS sentinel, or the
// uppercased label itself as a last resort.
package normalize

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"

	"github.com/KaliFly/pennypet-invoice-llm-demo/constants"
	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/lexicon"
)

// Fuzzy acceptance thresholds for the last-resort matcher.
const (
	glossaryFuzzyThreshold = 85
	actFuzzyThreshold      = 80
)

// Heuristics recognizing medication lines: dosage units, pharmaceutical
// forms, therapeutic classes.
var medicationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b\d+(?:[.,]\d+)?\s*(?:mg|ml|g|kg|ui|µg|mcg|%)(?:\b|/)`),
	regexp.MustCompile(`(?i)\b(?:comprim[eé]s?|g[eé]lules?|sirop|injectables?|injections?|pommades?|suppositoires?|sprays?|gouttes?|collyres?|solutions?|suspensions?|pipettes?|ampoules?)\b`),
	regexp.MustCompile(`(?i)\b(?:antibiotiques?|anti-?inflammatoires?|vaccins?|vermifuges?|antiparasitaires?|cortico[iï]des?|analg[eé]siques?|antidouleurs?|anesth[eé]si\w*|antiseptiques?)\b`),
}

type strategy func(upper, raw string) (string, bool)

// Normalizer maps raw line labels to normalized codes. Results are
// memoized per uppercased label for the lifetime of the instance; the
// cache is guarded so one Normalizer can sit behind a concurrent server.
type Normalizer struct {
	store      *lexicon.Store
	logger     *slog.Logger
	strategies []strategy

	mu    sync.RWMutex
	cache map[string]string
}

func New(store *lexicon.Store, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	n := &Normalizer{
		store:  store,
		logger: logger,
		cache:  make(map[string]string),
	}
	// first match wins, in this order
	n.strategies = []strategy{
		n.matchActPattern,
		n.matchMedicationPattern,
		n.matchGlossary,
		n.matchFuzzy,
	}
	return n
}

// Normalize classifies a raw label. It never returns an empty code: a
// non-empty label that matches nothing comes back uppercased unchanged,
// and an empty label yields the INDETERMINE sentinel.
func (n *Normalizer) Normalize(rawLabel string) string {
	upper := strings.ToUpper(strings.TrimSpace(rawLabel))
	if upper == "" {
		return constants.CodeIndetermine
	}

	n.mu.RLock()
	code, hit := n.cache[upper]
	n.mu.RUnlock()
	if hit {
		return code
	}

	code = n.classify(upper, rawLabel)

	n.mu.Lock()
	n.cache[upper] = code
	n.mu.Unlock()
	return code
}

// Kind buckets a normalized code by outcome: a known act code, the
// MEDICAMENTS or INDETERMINE sentinels, or an uppercased fallback.
func (n *Normalizer) Kind(code string) string {
	switch code {
	case constants.CodeMedicaments:
		return "medicaments"
	case constants.CodeIndetermine:
		return "indetermine"
	}
	for _, known := range n.store.ActCodes() {
		if code == known {
			return "acte"
		}
	}
	return "fallback"
}

func (n *Normalizer) classify(upper, raw string) string {
	for _, s := range n.strategies {
		if code, ok := s(upper, raw); ok {
			return code
		}
	}
	return upper
}

func (n *Normalizer) matchActPattern(upper, _ string) (string, bool) {
	for _, act := range n.store.Acts {
		if act.Pattern.MatchString(upper) {
			return act.Code, true
		}
	}
	return "", false
}

func (n *Normalizer) matchMedicationPattern(upper, _ string) (string, bool) {
	for _, pat := range medicationPatterns {
		if pat.MatchString(upper) {
			return constants.CodeMedicaments, true
		}
	}
	return "", false
}

func (n *Normalizer) matchGlossary(_, raw string) (string, bool) {
	normalized := lexicon.NormalizeTerm(raw)
	if normalized == "" {
		return "", false
	}
	labelTokens := longTokens(normalized)
	for _, term := range n.store.GlossaryTerms() {
		if normalized == term ||
			strings.Contains(normalized, term) ||
			strings.Contains(term, normalized) {
			return constants.CodeMedicaments, true
		}
		if sharesToken(labelTokens, term) {
			return constants.CodeMedicaments, true
		}
	}
	return "", false
}

func (n *Normalizer) matchFuzzy(_, raw string) (string, bool) {
	normalized := lexicon.NormalizeTerm(raw)
	// partial ratio saturates on very short needles
	if len(normalized) < 4 {
		return "", false
	}

	best := 0
	for _, term := range n.store.GlossaryTerms() {
		if score := fuzzy.PartialRatio(normalized, term); score > best {
			best = score
		}
	}
	if best >= glossaryFuzzyThreshold {
		return constants.CodeMedicaments, true
	}

	bestCode, bestScore := "", 0
	for _, code := range n.store.ActCodes() {
		target := strings.ToLower(strings.ReplaceAll(code, "_", " "))
		if score := fuzzy.TokenSortRatio(normalized, target); score > bestScore {
			bestCode, bestScore = code, score
		}
	}
	if bestScore >= actFuzzyThreshold {
		return bestCode, true
	}
	return "", false
}

func longTokens(normalized string) []string {
	var out []string
	for _, tok := range strings.Fields(normalized) {
		if len(tok) >= 4 {
			out = append(out, tok)
		}
	}
	return out
}

func sharesToken(labelTokens []string, term string) bool {
	for _, tt := range strings.Fields(term) {
		if len(tt) < 4 {
			continue
		}
		for _, lt := range labelTokens {
			if lt == tt {
				return true
			}
		}
	}
	return false
}
