package signer

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyUnavailable means no usable signing key is configured
	ErrKeyUnavailable = errors.New("signing key unavailable")

	// ErrInvalidTypedData means the domain, types and value do not encode
	ErrInvalidTypedData = errors.New("invalid typed data")
)

// SigningError is returned by every failed signing operation
type SigningError struct {
	Op  string
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

func newSigningError(op string, sentinel error, cause error) *SigningError {
	if cause == nil {
		return &SigningError{Op: op, Err: sentinel}
	}
	if sentinel == nil {
		return &SigningError{Op: op, Err: cause}
	}
	return &SigningError{Op: op, Err: fmt.Errorf("%w: %w", sentinel, cause)}
}
