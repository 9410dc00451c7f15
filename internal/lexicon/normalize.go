package lexicon

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	foldTransform = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	reNonWord     = regexp.MustCompile(`[^a-z0-9]+`)
)

// NormalizeTerm lowercases a term, strips accents/diacritics, replaces
// non-word characters with spaces and collapses whitespace. It is the
// canonical key both for glossary entries and for labels compared to them.
func NormalizeTerm(s string) string {
	folded, _, err := transform.String(foldTransform, s)
	if err != nil {
		// keep the raw string rather than fail a lookup
		folded = s
	}
	folded = strings.ToLower(folded)
	folded = reNonWord.ReplaceAllString(folded, " ")
	return strings.Join(strings.Fields(folded), " ")
}
