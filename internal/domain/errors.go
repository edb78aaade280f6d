package domain

import (
	"errors"
	"fmt"
)

// ErrRuleViolation marks an invariant that the requested mutation would break.
// Callers match it with errors.Is; the message carries the specific rule.
var ErrRuleViolation = errors.New("domain rule violation")

func ruleViolation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRuleViolation, fmt.Sprintf(format, args...))
}

// ValidationError is a field-level input error raised before any domain logic
// or store access runs. It is never retried and never masked.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field string, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
