package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// StatusError is a non-2xx reply from a provider API.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, friendlyHTTPError(e.StatusCode, e.Body))
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= 500
}

func newStatusError(provider string, code int, body []byte) *StatusError {
	s := strings.TrimSpace(string(body))
	if len(s) > 300 {
		s = s[:300]
	}
	return &StatusError{Provider: provider, StatusCode: code, Body: s}
}

func friendlyHTTPError(code int, body string) string {
	switch code {
	case http.StatusTooManyRequests:
		return "rate limit exceeded"
	case http.StatusUnauthorized:
		return "invalid or missing API key"
	}
	if body == "" {
		return http.StatusText(code)
	}
	return body
}

// IsTransient reports whether err is a failure that may succeed on retry:
// transport errors and HTTP 408, 429 or 5xx. Context cancellation is never
// transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var te *transportError
	return errors.As(err, &te)
}

// transportError marks a failure to reach the provider at all.
type transportError struct{ err error }

func (e *transportError) Error() string { return "HTTP request: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }
