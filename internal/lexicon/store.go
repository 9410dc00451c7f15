// Package lexicon loads the read-only rule tables driving label
// normalization and reimbursement: the acts pattern table, the drug
// glossary and the coverage-rule table. Tables are loaded once at
// startup and immutable afterwards.
package lexicon

import (
	"bytes"
	"embed"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/KaliFly/pennypet-invoice-llm-demo/internal/common"
)

//go:embed defaults/actes.csv defaults/medicaments.json defaults/regles_pc.csv
var defaultsFS embed.FS

const (
	actsHeader  = "categorie;sous_acte;amv;regex_pattern;code_acte"
	rulesHeader = "assureur;formule;code_couvert;actes_couverts;type_couverture;taux_remboursement;plafond_annuel"
)

// Store holds the loaded tables. All fields are read-only after Load.
type Store struct {
	Acts    []ActEntry
	Records []GlossaryRecord
	Rules   []CoverageRule

	terms    []string
	actCodes []string
}

// Load reads the configured tables, falling back to the embedded defaults
// for any table without a configured path. A configured path that is
// missing, unreadable or has the wrong header is a fatal error; a
// malformed individual row is logged and skipped.
func Load(cfg common.LexiconConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{}

	actsSrc, err := openTable(cfg.ActsPath, "defaults/actes.csv")
	if err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "acts table unreadable", err)
	}
	s.Acts, err = parseActs(actsSrc, logger)
	if err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "acts table invalid", err)
	}

	glossarySrc, err := openTable(cfg.GlossaryPath, "defaults/medicaments.json")
	if err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "drug glossary unreadable", err)
	}
	s.Records, err = parseGlossary(glossarySrc)
	if err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "drug glossary invalid", err)
	}

	rulesSrc, err := openTable(cfg.RulesPath, "defaults/regles_pc.csv")
	if err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "coverage rules unreadable", err)
	}
	s.Rules, err = parseRules(rulesSrc, logger)
	if err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "coverage rules invalid", err)
	}

	s.terms = buildTermIndex(s.Records)
	s.actCodes = collectActCodes(s.Acts)

	logger.Info("lexicon.load.ok",
		"acts", len(s.Acts),
		"glossary_records", len(s.Records),
		"glossary_terms", len(s.terms),
		"rules", len(s.Rules),
	)
	return s, nil
}

// GlossaryTerms returns the normalized drug terms including plural and
// abbreviation variants, in source order.
func (s *Store) GlossaryTerms() []string { return s.terms }

// ActCodes returns the distinct act codes in table order.
func (s *Store) ActCodes() []string { return s.actCodes }

func openTable(path, embedded string) (io.Reader, error) {
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(b), nil
	}
	b, err := defaultsFS.ReadFile(embedded)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(b), nil
}

func parseActs(r io.Reader, logger *slog.Logger) ([]ActEntry, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = 5

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if got := strings.Join(header, ";"); got != actsHeader {
		return nil, fmt.Errorf("unexpected acts header %q, want %q", got, actsHeader)
	}

	var acts []ActEntry
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("lexicon.acts.row_skipped", "line", line, "error", err)
			continue
		}
		amv, err := strconv.Atoi(strings.TrimSpace(rec[2]))
		if err != nil {
			logger.Warn("lexicon.acts.row_skipped", "line", line, "error", err)
			continue
		}
		pat, err := regexp.Compile("(?i)" + rec[3])
		if err != nil {
			logger.Warn("lexicon.acts.bad_pattern", "line", line, "pattern", rec[3], "error", err)
			continue
		}
		code := strings.TrimSpace(rec[4])
		if code == "" {
			code = DeriveActCode(rec[0], rec[1])
		}
		acts = append(acts, ActEntry{
			Categorie: strings.TrimSpace(rec[0]),
			SousActe:  strings.TrimSpace(rec[1]),
			AMV:       amv,
			Pattern:   pat,
			Code:      code,
		})
	}
	if len(acts) == 0 {
		return nil, fmt.Errorf("acts table contains no usable rows")
	}
	return acts, nil
}

var reNonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)

// DeriveActCode builds the canonical act code from category and sub-act,
// e.g. ("Chirurgie", "Fracture") -> "CHIRURGIE_FRACTURE".
func DeriveActCode(categorie, sousActe string) string {
	joined := categorie + "_" + sousActe
	return strings.Trim(strings.ToUpper(reNonAlnum.ReplaceAllString(joined, "_")), "_")
}

func parseGlossary(r io.Reader) ([]GlossaryRecord, error) {
	var records []GlossaryRecord
	dec := json.NewDecoder(r)
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode glossary: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("glossary contains no records")
	}
	return records, nil
}

func parseRules(r io.Reader, logger *slog.Logger) ([]CoverageRule, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = 7

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if got := strings.Join(header, ";"); got != rulesHeader {
		return nil, fmt.Errorf("unexpected rules header %q, want %q", got, rulesHeader)
	}

	var rules []CoverageRule
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("lexicon.rules.row_skipped", "line", line, "error", err)
			continue
		}
		ct := CoverageType(strings.TrimSpace(rec[4]))
		if ct != AccidentAndIllness && ct != AccidentOnly {
			logger.Warn("lexicon.rules.bad_coverage_type", "line", line, "type", rec[4])
			continue
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(rec[5]), 64)
		if err != nil || rate < 0 || rate > 100 {
			logger.Warn("lexicon.rules.bad_rate", "line", line, "rate", rec[5])
			continue
		}
		cap, err := strconv.ParseFloat(strings.TrimSpace(rec[6]), 64)
		if err != nil || cap < 0 {
			logger.Warn("lexicon.rules.bad_cap", "line", line, "cap", rec[6])
			continue
		}
		covered := make(map[string]struct{})
		for _, code := range strings.Split(rec[3], "|") {
			code = strings.TrimSpace(code)
			if code != "" {
				covered[code] = struct{}{}
			}
		}
		rules = append(rules, CoverageRule{
			Assureur:    strings.TrimSpace(rec[0]),
			Formule:     strings.ToUpper(strings.TrimSpace(rec[1])),
			CoveredCode: strings.TrimSpace(rec[2]),
			CoveredActs: covered,
			Type:        ct,
			RatePercent: rate,
			AnnualCap:   cap,
		})
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("rule table contains no usable rows")
	}
	return rules, nil
}

// abbreviation pairs common in OCRed French prescriptions (accent-free,
// applied to normalized terms in both directions)
var abbreviations = map[string]string{
	"gelule":     "gel",
	"comprime":   "cp",
	"injection":  "inj",
	"solution":   "sol",
	"suspension": "susp",
}

func buildTermIndex(records []GlossaryRecord) []string {
	seen := make(map[string]struct{})
	var terms []string
	add := func(raw string) {
		for _, v := range expandVariants(raw) {
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			terms = append(terms, v)
		}
	}
	for _, rec := range records {
		add(rec.Medicament)
		for _, part := range strings.Split(rec.Commercial, ",") {
			add(part)
		}
		for _, syn := range rec.SynonymesOCR {
			add(syn)
		}
	}
	return terms
}

func expandVariants(raw string) []string {
	n := NormalizeTerm(raw)
	if n == "" {
		return nil
	}
	out := []string{n}
	if strings.HasSuffix(n, "s") {
		out = append(out, strings.TrimSuffix(n, "s"))
	} else {
		out = append(out, n+"s")
	}
	tokens := strings.Fields(n)
	for i, tok := range tokens {
		for full, abbr := range abbreviations {
			var repl string
			switch tok {
			case full:
				repl = abbr
			case abbr:
				repl = full
			default:
				continue
			}
			variant := make([]string, len(tokens))
			copy(variant, tokens)
			variant[i] = repl
			out = append(out, strings.Join(variant, " "))
		}
	}
	return out
}

func collectActCodes(acts []ActEntry) []string {
	seen := make(map[string]struct{})
	var codes []string
	for _, a := range acts {
		if _, dup := seen[a.Code]; dup {
			continue
		}
		seen[a.Code] = struct{}{}
		codes = append(codes, a.Code)
	}
	return codes
}
