package models

import (
	"errors"
	"strconv"
)

// ErrInvalidTransition is returned when a delivery is asked to move to a
// status its current status cannot reach
var ErrInvalidTransition = errors.New("invalid delivery status transition")

// ErrAlreadyRetried is returned when a failed delivery already has a retry
var ErrAlreadyRetried = errors.New("delivery already retried")

// ValidationError reports a missing or malformed request field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + " " + e.Message
}

// NewValidationError builds a ValidationError for field
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError reports whether err wraps a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
