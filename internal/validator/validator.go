// Package validator accumulates field errors from composable rules. Every rule
// runs; callers check Fails and read the messages in the order they were added.
package validator

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	playground "github.com/go-playground/validator/v10"
)

// shared instance, playground.Validate is safe for concurrent use and caches tag parsing
var validate = playground.New()

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Validator struct {
	errors []FieldError
}

func New() *Validator {
	return &Validator{}
}

func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.add(field, "%s is required", label(field))
	}
	return v
}

func (v *Validator) Numeric(field, value string) *Validator {
	if validate.Var(strings.TrimSpace(value), "numeric") != nil {
		v.add(field, "%s must be a number", label(field))
	}
	return v
}

// Integer requires a whole number, used for ids and quantities.
func (v *Validator) Integer(field, value string) *Validator {
	if _, err := strconv.Atoi(strings.TrimSpace(value)); err != nil {
		v.add(field, "%s must be a whole number", label(field))
	}
	return v
}

func (v *Validator) Between(field, value string, min, max float64) *Validator {
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || n < min || n > max {
		v.add(field, "%s must be between %s and %s", label(field), formatNumber(min), formatNumber(max))
	}
	return v
}

// Min checks the length of value in characters.
func (v *Validator) Min(field, value string, length int) *Validator {
	if utf8.RuneCountInString(value) < length {
		v.add(field, "%s must be at least %d characters", label(field), length)
	}
	return v
}

// Max is the upper bound counterpart of Min.
func (v *Validator) Max(field, value string, length int) *Validator {
	if utf8.RuneCountInString(value) > length {
		v.add(field, "%s must be at most %d characters", label(field), length)
	}
	return v
}

func (v *Validator) Email(field, value string) *Validator {
	if validate.Var(value, "email") != nil {
		v.add(field, "%s must be a valid email address", label(field))
	}
	return v
}

// Matches requires value to equal other, e.g. a password confirmation.
func (v *Validator) Matches(field, value, other string) *Validator {
	if value != other {
		v.add(field, "%s does not match", label(field))
	}
	return v
}

func (v *Validator) Fails() bool {
	return len(v.errors) > 0
}

// Errors returns the messages in the order the failing rules ran.
func (v *Validator) Errors() []string {
	out := make([]string, len(v.errors))
	for i, e := range v.errors {
		out[i] = e.Message
	}
	return out
}

func (v *Validator) FieldErrors() []FieldError {
	out := make([]FieldError, len(v.errors))
	copy(out, v.errors)
	return out
}

func (v *Validator) add(field, format string, args ...any) {
	v.errors = append(v.errors, FieldError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	})
}

// label turns "shipping_postal_code" into "Shipping postal code".
func label(field string) string {
	s := strings.ReplaceAll(field, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
