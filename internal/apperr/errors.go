// Package apperr defines the failure taxonomy shared by the data-access layer
// and maps failures to user-facing messages.
//
// Failures fall into three groups:
//
//   - Network: the remote side could not be reached (ErrNetwork, ErrOffline,
//     or any net.Error). Always transient.
//   - Status: the remote side answered with an HTTP-style status
//     (*StatusError). Transient when the status is 500 or above.
//   - Everything else: permanent.
//
// Cancellation is not a failure and is handled by the callers (see
// fetch.ErrCanceled).
package apperr

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrNetwork marks a failure caused by a lost or refused connection.
var ErrNetwork = errors.New("network error")

// ErrOffline marks a failure raised while the client knows it is offline.
var ErrOffline = errors.New("offline")

// StatusError is a failure reported by a remote collaborator with a status code.
type StatusError struct {
	StatusCode int
	Message    string
	Err        error // underlying cause, optional
}

// NewStatusError creates a StatusError with the given status and message.
func NewStatusError(code int, message string) *StatusError {
	return &StatusError{StatusCode: code, Message: message}
}

// WrapStatus annotates err with a status code.
func WrapStatus(code int, err error) *StatusError {
	msg := http.StatusText(code)
	if err != nil {
		msg = err.Error()
	}
	return &StatusError{StatusCode: code, Message: msg, Err: err}
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// StatusCode returns the status carried by err, or 0 if there is none.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// IsOffline reports whether err was raised while offline.
func IsOffline(err error) bool {
	return errors.Is(err, ErrOffline)
}

// IsNetwork reports whether err indicates connectivity loss.
// Deadline errors satisfy net.Error and are treated as network failures.
func IsNetwork(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNetwork) || errors.Is(err, ErrOffline) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// IsTransient reports whether a retry may succeed: network failures, offline
// state, and server-side statuses (500 and above).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsNetwork(err) {
		return true
	}
	return StatusCode(err) >= http.StatusInternalServerError
}
