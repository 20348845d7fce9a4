package interpreter

import (
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const matchCutoff = 0.6

// fold lowercases s and strips diacritics.
func fold(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}

	return out
}

// ResolveName maps a typed medication name to a known one. Unmatched input
// is kept as typed, title-cased.
func ResolveName(raw string, names []string) string {
	if name, ok := closestName(raw, names); ok {
		return name
	}

	return cases.Title(language.BrazilianPortuguese).String(strings.TrimSpace(raw))
}

// closestName returns the known name most similar to raw, when the
// similarity ratio reaches the cutoff.
func closestName(raw string, names []string) (string, bool) {
	word := fold(raw)
	if word == "" {
		return "", false
	}

	m := difflib.NewMatcher(nil, strings.Split(word, ""))

	best, bestScore := "", 0.0
	for _, name := range names {
		m.SetSeq1(strings.Split(fold(name), ""))

		if m.RealQuickRatio() < matchCutoff || m.QuickRatio() < matchCutoff {
			continue
		}

		if score := m.Ratio(); score >= matchCutoff && score > bestScore {
			best, bestScore = name, score
		}
	}

	return best, best != ""
}

// mentionedName returns the longest known name contained in text as whole words.
func mentionedName(text string, names []string) (string, bool) {
	padded := " " + strings.Join(strings.FieldsFunc(fold(text), isSeparator), " ") + " "

	best := ""
	for _, name := range names {
		needle := " " + strings.Join(strings.FieldsFunc(fold(name), isSeparator), " ") + " "
		if strings.TrimSpace(needle) == "" {
			continue
		}

		if strings.Contains(padded, needle) && len(name) > len(best) {
			best = name
		}
	}

	return best, best != ""
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
}
