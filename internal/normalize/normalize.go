// Package normalize holds text folding helpers shared by the segmenter and
// the value transformer.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lower-cases s and strips diacritics, so "Descrição" becomes "descricao".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// Tokens splits folded text into letter/digit words.
func Tokens(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// NumericLike reports whether s reads as a number, amount, percentage or
// date rather than as text.
func NumericLike(s string) bool {
	s = strings.TrimSpace(s)
	for _, sym := range []string{"R$", "US$", "$", "€", "£", "%"} {
		s = strings.ReplaceAll(s, sym, "")
	}
	digits := 0
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case strings.ContainsRune(" .,-/:()+", r):
		default:
			return false
		}
	}
	return digits > 0
}
