package domain

import "strings"

// NormalizeURL prefixes https:// when the value carries neither an
// http:// nor an https:// scheme. Anything else is left untouched.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return trimmed
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return trimmed
	}
	return "https://" + trimmed
}
