package util

import "strings"

// SanitizeText strips NUL bytes and non-printing controls that PDF extractors
// leave behind, keeping newlines and tabs.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, "\r\n", "\n")

	r := make([]rune, 0, len(s))
	for _, ch := range s {
		if ch == '\n' || ch == '\t' {
			r = append(r, ch)
			continue
		}
		if ch < 0x20 || ch == 0x7f || ch == '�' {
			continue
		}
		r = append(r, ch)
	}
	return strings.TrimSpace(string(r))
}
