// Package validation checks user input before it reaches aggregation or a
// provider call.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/Tiliavir/ttt-insights/internal/llm"
	"github.com/Tiliavir/ttt-insights/internal/model"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("vendor", validateVendor); err != nil {
		panic(fmt.Sprintf("failed to register vendor validator: %v", err))
	}
	if err := Validate.RegisterValidation("entry_kind", validateEntryKind); err != nil {
		panic(fmt.Sprintf("failed to register entry_kind validator: %v", err))
	}
}

// validateVendor accepts any name llm.ParseVendor understands.
func validateVendor(fl validator.FieldLevel) bool {
	_, err := llm.ParseVendor(fl.Field().String())
	return err == nil
}

// validateEntryKind validates a model.Kind value
func validateEntryKind(fl validator.FieldLevel) bool {
	switch model.Kind(fl.Field().String()) {
	case model.KindTask, model.KindMeeting:
		return true
	}
	return false
}

// Error lists every problem found in one input.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return "invalid input: " + strings.Join(e.Problems, "; ")
}

// IsValidationError reports whether err is (or wraps) a *Error.
func IsValidationError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// Struct validates v's struct tags and returns a *Error describing each
// failed field.
func Struct(v any) error {
	err := Validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &Error{}
	for _, fe := range verrs {
		out.Problems = append(out.Problems, describe(fe))
	}
	return out
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "vendor":
		return fmt.Sprintf("%s %q is not a known provider (openai, anthropic, google)", field, fe.Value())
	case "entry_kind":
		return fmt.Sprintf("%s %q must be task or meeting", field, fe.Value())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

// DateRange checks that both ends are set and to is not before from.
func DateRange(from, to time.Time) error {
	var problems []string
	if from.IsZero() {
		problems = append(problems, "start date is required")
	}
	if to.IsZero() {
		problems = append(problems, "end date is required")
	}
	if len(problems) == 0 && to.Before(from) {
		problems = append(problems, fmt.Sprintf("end date %s is before start date %s",
			to.Format("2006-01-02"), from.Format("2006-01-02")))
	}
	if len(problems) > 0 {
		return &Error{Problems: problems}
	}
	return nil
}

// Percentages checks deliverable allocations: each value within 0..100 and
// the total not above 100.
func Percentages(allocs map[string]float64) error {
	var problems []string
	var total float64
	for id, pct := range allocs {
		if strings.TrimSpace(id) == "" {
			problems = append(problems, "allocation without deliverable id")
		}
		if pct < 0 || pct > 100 {
			problems = append(problems, fmt.Sprintf("allocation for %s must be between 0 and 100", id))
		}
		total += pct
	}
	if total > 100 {
		problems = append(problems, fmt.Sprintf("allocations add up to %.0f%%, more than 100%%", total))
	}
	if len(problems) > 0 {
		return &Error{Problems: problems}
	}
	return nil
}

// SanitizeText trims whitespace and removes control characters except
// newline and tab.
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)
	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}
	return sanitized.String()
}
