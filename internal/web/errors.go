package web

// errors.go turns handler errors into JSON responses.
//
// The technical error is logged with the request ID; the client receives the
// classifier's user message and code. Messages of client errors (4xx) are
// echoed since they describe the caller's input; server errors are not.

import (
	"errors"
	"net"
	"net/http"

	"github.com/JonMunkholm/gradebook/internal/apperr"
	"github.com/JonMunkholm/gradebook/internal/core"
	"github.com/JonMunkholm/gradebook/internal/logging"
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes the matching status and user message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if apperr.StatusCode(err) == 0 && status != http.StatusInternalServerError {
		err = apperr.WrapStatus(status, err)
	}
	msg := apperr.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if errors.Is(err, core.ErrTooManyImports) {
		w.Header().Set("Retry-After", "30")
	}

	detail := msg.Message
	if status < http.StatusInternalServerError {
		detail = clientMessage(err)
	}
	writeJSON(w, status, ErrorResponse{
		Error:   detail,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// writeError writes a client error raised by the handler itself.
func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	msg := apperr.MapError(apperr.NewStatusError(status, message))
	logging.FromContext(r.Context()).Warn("request rejected",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"reason", message,
	)
	writeJSON(w, status, ErrorResponse{
		Error:   message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	var verr core.ValidationError
	switch {
	case errors.Is(err, core.ErrImportNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrImportInProgress):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	}
	if code := apperr.StatusCode(err); code != 0 {
		return code
	}
	if apperr.IsNetwork(err) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// clientMessage returns the innermost StatusError message, or err's text.
func clientMessage(err error) string {
	var se *apperr.StatusError
	for errors.As(err, &se) {
		if se.Err == nil {
			return se.Message
		}
		err = se.Err
	}
	return err.Error()
}

// clientIP returns the request's remote address without the port.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
