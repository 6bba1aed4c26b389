package auth

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxFieldLength caps free-text profile fields.
const maxFieldLength = 255

// SanitizeName trims whitespace, collapses internal runs of spaces and drops
// control characters. Output is stored as-is; escaping happens at render time.
func SanitizeName(name string) string {
	return truncate(strings.Join(strings.Fields(removeControlChars(name)), " "), maxFieldLength)
}

// SanitizeText trims and strips control characters except newlines and tabs.
func SanitizeText(s string) string {
	return truncate(strings.TrimSpace(removeControlChars(s)), maxFieldLength)
}

// SanitizeIdentifier strips all whitespace and control characters, for values
// such as phone and id numbers that take part in uniqueness checks.
func SanitizeIdentifier(s string) string {
	return truncate(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return -1
		}
		return r
	}, s), maxFieldLength)
}

// removeControlChars removes control characters except newline and tab.
func removeControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
