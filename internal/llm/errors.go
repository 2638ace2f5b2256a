package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies provider failures.
type Kind int

const (
	KindMissingKey Kind = iota + 1
	KindHTTP
	KindSafetyBlocked
	KindTruncated
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindMissingKey:
		return "missing_key"
	case KindHTTP:
		return "http_error"
	case KindSafetyBlocked:
		return "safety_blocked"
	case KindTruncated:
		return "truncated_output"
	case KindMalformed:
		return "malformed_response"
	}
	return "unknown"
}

// Error is a classified provider failure.
type Error struct {
	Kind    Kind
	Vendor  Vendor
	Status  int // HTTP status for KindHTTP, else 0
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s (status %d): %s", e.Vendor, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Vendor, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage is a readable explanation for notifications and the CLI.
func (e *Error) UserMessage() string {
	name := e.Vendor.DisplayName()
	switch e.Kind {
	case KindMissingKey:
		return fmt.Sprintf("No API key configured for %s. Add it to the llm section of the config file or set %s.", name, KeyEnvVar(e.Vendor))
	case KindSafetyBlocked:
		return fmt.Sprintf("%s declined to generate this report (content filtered). Try a different template or date range.", name)
	case KindTruncated:
		return fmt.Sprintf("%s stopped at its output limit before writing anything. Increase max_tokens or shorten the date range.", name)
	case KindMalformed:
		return fmt.Sprintf("%s returned a response that could not be read: %s", name, e.Message)
	case KindHTTP:
		switch {
		case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
			return fmt.Sprintf("%s rejected the API key (%d). Check the key in your config.", name, e.Status)
		case e.Status == http.StatusTooManyRequests:
			return fmt.Sprintf("%s rate limit or quota exceeded. Wait a moment and generate again.", name)
		case e.Status == http.StatusNotFound:
			return fmt.Sprintf("%s does not know this model or endpoint: %s", name, e.Message)
		case e.Status >= 500:
			return fmt.Sprintf("%s is unavailable right now (%d). Try again later.", name, e.Status)
		case e.Status == 0:
			return fmt.Sprintf("Could not reach %s: %s", name, e.Message)
		}
		return fmt.Sprintf("%s request failed (%d): %s", name, e.Status, e.Message)
	}
	return e.Error()
}

// KeyEnvVar names the environment variable holding the vendor's key.
func KeyEnvVar(v Vendor) string {
	switch v {
	case VendorOpenAI:
		return "OPENAI_API_KEY"
	case VendorAnthropic:
		return "ANTHROPIC_API_KEY"
	case VendorGoogle:
		return "GEMINI_API_KEY"
	}
	return ""
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// UserMessage returns the readable message for err, falling back to
// err.Error() for unclassified errors.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.UserMessage()
	}
	return err.Error()
}
