package ai

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned when a backend has no usable credential.
var ErrNotConfigured = errors.New("backend is not configured")

// ExternalServiceError describes a failed call to an external collaborator: network failure,
// timeout, authentication or a missing credential. It is always recoverable.
type ExternalServiceError struct {
	Service string
	Op      string
	Detail  string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Service, e.Op)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// NewExternalServiceError wraps err unless it already is an ExternalServiceError.
func NewExternalServiceError(service, op string, err error) error {
	var existing *ExternalServiceError
	if errors.As(err, &existing) {
		return err
	}
	return &ExternalServiceError{Service: service, Op: op, Err: err}
}

// ParseError describes a well-formed response whose content does not have the expected shape.
type ParseError struct {
	What string
	Raw  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return "parse " + e.What
	}
	return fmt.Sprintf("parse %s: %v", e.What, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsExternal reports whether err carries an ExternalServiceError.
func IsExternal(err error) bool {
	var target *ExternalServiceError
	return errors.As(err, &target)
}

// IsParse reports whether err carries a ParseError.
func IsParse(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}
