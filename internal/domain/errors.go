// Package domain holds the error taxonomy shared by the messaging and
// alerting cores. Validation failures name the violated field so the API
// layer can surface it; lookups of nonexistent records return ErrNotFound.
package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a message, rule, or alert id does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports a creation-time invariant violation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError for a field.
func Invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
