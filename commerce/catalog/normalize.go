package catalog

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeQuery lower-cases, strips diacritics and reduces every token to
// its grammatical singular, so "Blusás" and "blusas" both become "blusa".
func NormalizeQuery(query string) string {
	return strings.Join(Tokens(query), " ")
}

// Tokens splits a folded query on anything that is not a letter or digit and
// singularizes each token.
func Tokens(query string) []string {
	fields := strings.FieldsFunc(Fold(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, Singular(f))
	}
	return out
}

// Fold lower-cases s and removes combining marks.
func Fold(s string) string {
	// transform.Chain keeps internal buffers, so it is built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return folded
}

// Singular applies Spanish plural rules to a folded word.
func Singular(word string) string {
	n := len(word)
	if n <= 3 || !strings.HasSuffix(word, "s") {
		return word
	}

	switch {
	case strings.HasSuffix(word, "is"), strings.HasSuffix(word, "us"), strings.HasSuffix(word, "ss"):
		// gris, tenis, campus
		return word
	case strings.HasSuffix(word, "ces") && isVowel(word[n-4]):
		// luces -> luz
		return word[:n-3] + "z"
	case strings.HasSuffix(word, "es") && strings.ContainsRune("lnr", rune(word[n-3])):
		// pantalones -> pantalon, colores -> color, azules -> azul
		return word[:n-2]
	default:
		return word[:n-1]
	}
}

func isVowel(b byte) bool {
	return strings.IndexByte("aeiou", b) >= 0
}
