package match

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	separatorRun  = regexp.MustCompile(`[\s\-_/・･]+`)
	bracketedNote = regexp.MustCompile(`[（(][^）)]*[）)]`)
)

// NameProfile captures the normalization output for a free-text product name.
type NameProfile struct {
	Original string
	// Normalized is lowercased, width-folded and has separators collapsed to
	// single spaces.
	Normalized string
	// Compact is Normalized with all spaces removed.
	Compact string
	// Stripped drops bracketed notes such as "(60 capsules)".
	Stripped string
}

// NormalizeName normalizes a product or ingredient name for matching.
func NormalizeName(input string) NameProfile {
	normalized := NormalizeTerm(input)
	stripped := NormalizeTerm(bracketedNote.ReplaceAllString(norm.NFKC.String(input), " "))
	return NameProfile{
		Original:   input,
		Normalized: normalized,
		Compact:    strings.ReplaceAll(normalized, " ", ""),
		Stripped:   stripped,
	}
}

// NormalizeTerm lowercases, NFKC folds full-width characters and collapses
// separators.
func NormalizeTerm(term string) string {
	term = norm.NFKC.String(term)
	term = strings.ToLower(term)
	term = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '.' {
			return r
		}
		return ' '
	}, term)
	term = separatorRun.ReplaceAllString(term, " ")
	return strings.TrimSpace(term)
}

// Contains reports whether term appears in the profile, either with spacing
// preserved or after removing all spaces. Terms shorter than minRunes are
// never matched.
func (p NameProfile) Contains(term string, minRunes int) bool {
	needle := NormalizeTerm(term)
	if needle == "" || utf8.RuneCountInString(needle) < minRunes {
		return false
	}
	if strings.Contains(p.Normalized, needle) {
		return true
	}
	compact := strings.ReplaceAll(needle, " ", "")
	return compact != "" && strings.Contains(p.Compact, compact)
}

// Terms returns the unique, non-empty normalized forms of the supplied
// values, preserving order.
func Terms(values ...string) []string {
	var out []string
	for _, v := range values {
		out = appendUnique(out, NormalizeTerm(v))
	}
	return out
}

func appendUnique(s []string, v string) []string {
	if v == "" {
		return s
	}
	for _, existing := range s {
		if existing == v {
			return s
		}
	}
	return append(s, v)
}
