package matching

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gosimple/unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes a name for comparison: lowercase, no diacritics,
// non-alphanumerics replaced by single spaces, trimmed. Normalize(Normalize(s)) == Normalize(s).
func Normalize(name string) string {
	folded := stripDiacritics(strings.ToLower(name))

	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// Tokens splits a name into its normalized whitespace-separated parts.
func Tokens(name string) []string {
	return strings.Fields(Normalize(name))
}

func stripDiacritics(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, value)
	if err != nil {
		out = value
	}
	if isASCII(out) {
		return out
	}
	// letters without a combining decomposition (ø, ß, ł) still need folding
	return strings.ToLower(unidecode.Unidecode(out))
}

func isASCII(value string) bool {
	for i := 0; i < len(value); i++ {
		if value[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
