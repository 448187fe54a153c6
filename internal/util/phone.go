package util

import (
	"regexp"
	"strings"
)

var nonPhoneChars = regexp.MustCompile(`[^\d\+]+`)

// NormalizePhone strips separators from a phone number, keeping a leading "+".
// Spreadsheet exports sometimes render numbers as "9629317944.0"; the
// fractional part is dropped.
func NormalizePhone(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexByte(s, '.'); i >= 0 && strings.Trim(s[i+1:], "0") == "" {
		s = s[:i]
	}
	s = nonPhoneChars.ReplaceAllString(s, "")

	if strings.HasPrefix(s, "00") {
		s = "+" + s[2:]
	}
	if i := strings.LastIndexByte(s, '+'); i > 0 {
		s = strings.ReplaceAll(s, "+", "")
	}

	return s
}
