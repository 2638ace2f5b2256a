package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxErrorMessageLength is the maximum length for error messages in logs
	MaxErrorMessageLength = 1000
	// MaxGeneralStringLength is the maximum length for general strings in logs
	MaxGeneralStringLength = 2000
	// MaxPreviewLength is the maximum length for prompt and response previews
	MaxPreviewLength = 200
	// MaxDebugContentLength is the maximum length for full prompts/responses
	MaxDebugContentLength = 10000
	// RedactedValue replaces sensitive data
	RedactedValue = "[REDACTED]"
)

// SanitizeString removes control characters, validates UTF-8 and truncates
// to maxLength bytes (on a rune boundary).
func SanitizeString(s string, maxLength int) string {
	if s == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = MaxGeneralStringLength
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	var builder strings.Builder
	builder.Grow(len(s))
	for _, r := range s {
		if unicode.IsPrint(r) || r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			builder.WriteRune(r)
		}
	}
	s = builder.String()
	if len(s) > maxLength {
		cut := maxLength
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}

// SanitizeError sanitizes an error message for safe logging
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error(), MaxErrorMessageLength)
}

// Preview returns a short sanitized preview of a prompt or response, or the
// full (still sanitized and capped) content when full is set.
func Preview(content string, full bool) string {
	if full {
		return SanitizeString(content, MaxDebugContentLength)
	}
	return SanitizeString(content, MaxPreviewLength)
}

// SanitizeAPIKey keeps the first and last four characters of a key.
func SanitizeAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 8 {
		return RedactedValue
	}
	return apiKey[:4] + RedactedValue + apiKey[len(apiKey)-4:]
}

// RedactSecret replaces every occurrence of secret in s.
func RedactSecret(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, RedactedValue)
}
