package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// Error carries provider context around one of the taxonomy sentinels.
type Error struct {
	Provider  string
	Kind      error
	Status    int
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	msg := e.Provider
	if msg == "" {
		msg = "provider"
	}
	if e.Kind != nil {
		msg += ": " + e.Kind.Error()
	}
	if e.Status > 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the taxonomy sentinel and the cause.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// FromStatus classifies an HTTP status from a translation or generation API.
func FromStatus(name string, status int, kind error, cause error) *Error {
	e := &Error{Provider: name, Kind: kind, Status: status, Err: cause}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.Kind = ErrMissingCredential
	case status == http.StatusTooManyRequests:
		e.Retryable = true
	case status >= 500:
		e.Retryable = true
	}
	return e
}

// IsRetryable reports whether err is a transient provider failure.
func IsRetryable(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Retryable
}
