package dedupe

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// minPhoneDigits is the shortest normalized phone used as a match key.
const minPhoneDigits = 10

// NormalizePhone keeps digits only and drops a leading US country code.
func NormalizePhone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	d := b.String()
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	return d
}

var legalSuffixes = map[string]bool{
	"llc": true, "inc": true, "co": true, "corp": true, "ltd": true,
	"company": true, "the": true, "pllc": true, "lp": true,
}

// NormalizeName folds accents and case, replaces punctuation with spaces and
// drops legal-entity words, so "Café Olé, LLC" and "cafe ole" compare equal.
func NormalizeName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if !legalSuffixes[f] {
			out = append(out, f)
		}
	}
	return strings.Join(out, " ")
}
