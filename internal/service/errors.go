package service

import (
	"errors"
	"fmt"
)

var (
	// ErrPastBooking rejects a creation whose start is already in the past.
	ErrPastBooking = errors.New("booking starts in the past")
	// ErrConflict rejects a creation that overlaps an active booking.
	ErrConflict = errors.New("time slot conflicts with an existing booking")
	// ErrNotFound is returned when a booking or feedback id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidAction is returned for an unrecognized status action.
	ErrInvalidAction = errors.New("invalid action")
)

// ValidationError reports malformed input on a specific field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidationError checks if the error is a ValidationError.
func IsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
