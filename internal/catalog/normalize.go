package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds an exercise name for duplicate detection: NFD decomposition,
// combining marks stripped, lowercased, inner whitespace collapsed.
// "Développé Couché" and "developpe  couche" normalize to the same key.
func Normalize(name string) string {
	// Chained transformers carry state, so build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// SameName reports whether two display names normalize to the same key.
func SameName(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
