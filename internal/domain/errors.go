package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMissingField       = errors.New("missing required field")
	ErrInvalidSessionType = errors.New("invalid session type")
	ErrInvalidDuration    = errors.New("session duration must be positive")
	ErrInvalidDigest      = errors.New("digest must be 32 bytes hex encoded with 0x prefix")
	ErrInvalidDate        = errors.New("session date must be YYYY-MM-DD")
	ErrEmptyUpdate        = errors.New("no updatable fields provided")
)

// ValidationError reports which input field was rejected.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a rejected input rather than a failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
