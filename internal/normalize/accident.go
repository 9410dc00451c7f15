package normalize

import "strings"

// accidentKeywords flag a line as accident-related. Matched
// case-insensitively as substrings; "fract" also covers "fracture",
// "trauma" also covers "traumatisme".
var accidentKeywords = []string{
	"accident",
	"urgent",
	"urgence",
	"fracture",
	"fract",
	"trauma",
	"traumatisme",
	"chute",
	"blessure",
}

// IsAccident reports whether a raw line label describes accident care.
func IsAccident(rawLabel string) bool {
	lower := strings.ToLower(rawLabel)
	for _, kw := range accidentKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
