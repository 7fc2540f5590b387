// Package apperr defines the error taxonomy shared by the schema, query and
// streaming packages, and the sanitizer that turns any of them into text that
// is safe to hand to a caller.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnsupported is returned by a store backend for an operation it cannot
// perform (for example, aggregation pipelines on the MySQL backend).
var ErrUnsupported = errors.New("operation not supported by this document store")

// ValidationError represents a malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Invalid builds a single ValidationError.
func Invalid(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a validation failure.
func IsValidation(err error) bool {
	var single *ValidationError
	if errors.As(err, &single) {
		return true
	}
	var many ValidationErrors
	return errors.As(err, &many)
}

// ConnectivityError means the store could not be reached or refused our
// credentials. It is never retried inside the core.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s: document store unreachable: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// CursorError wraps a driver failure that happened while a cursor was open.
type CursorError struct {
	Op  string
	Err error
}

func (e *CursorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CursorError) Unwrap() error { return e.Err }

// IsConnectivity reports whether err is (or wraps) a ConnectivityError.
func IsConnectivity(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}

const maxMessageLen = 240

var (
	uriPattern  = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://\S+`)
	credPattern = regexp.MustCompile(`(?i)(password|passwd|pwd|secret|token)\s*[=:]\s*\S+`)
	pathPattern = regexp.MustCompile(`(^|[\s(="'])(/[A-Za-z0-9._-]+){2,}/?`)
	hostPattern = regexp.MustCompile(`\b\d{1,3}(\.\d{1,3}){3}(:\d+)?\b`)
)

// Sanitize renders err as a caller-facing message. Validation messages pass
// through verbatim; connectivity and timeout failures become fixed text;
// anything else is stripped of URIs, credentials, host addresses and file
// paths, reduced to its first line and truncated.
func Sanitize(err error) string {
	if err == nil {
		return ""
	}

	if IsValidation(err) {
		var single *ValidationError
		if errors.As(err, &single) {
			return "invalid request: " + single.Error()
		}
		var many ValidationErrors
		errors.As(err, &many)
		return "invalid request: " + many.Error()
	}

	switch {
	case IsConnectivity(err):
		return "document store is unreachable or rejected the connection"
	case errors.Is(err, context.DeadlineExceeded):
		return "operation timed out"
	case errors.Is(err, ErrUnsupported):
		return scrub(err.Error())
	}

	var ce *CursorError
	if errors.As(err, &ce) {
		return "query execution failed: " + scrub(ce.Err.Error())
	}
	return "query execution failed: " + scrub(err.Error())
}

func scrub(msg string) string {
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	msg = uriPattern.ReplaceAllString(msg, "<redacted>")
	msg = credPattern.ReplaceAllString(msg, "$1=<redacted>")
	msg = hostPattern.ReplaceAllString(msg, "<host>")
	msg = pathPattern.ReplaceAllString(msg, "$1<path>")
	msg = strings.TrimSpace(msg)
	if len(msg) > maxMessageLen {
		msg = msg[:maxMessageLen] + "..."
	}
	return msg
}
