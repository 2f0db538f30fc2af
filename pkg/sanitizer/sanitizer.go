package sanitizer

import (
	"strings"
	"unicode"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

func dropControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// SanitizeTitle strips control characters and collapses whitespace.
func SanitizeTitle(input string) string {
	return Pipeline{dropControl, TrimAndNormalize}.Apply(input)
}

// SanitizeName is SanitizeTitle for person names.
func SanitizeName(input string) string {
	return SanitizeTitle(input)
}

// NormalizeEmail trims and lowercases, so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
