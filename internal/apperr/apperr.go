// Package apperr defines the operational error taxonomy returned by services and
// rendered by the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindNotFound       Kind = "not_found"
	KindDelivery       Kind = "delivery"
	KindRateLimited    Kind = "rate_limited"
	KindInternal       Kind = "internal"
)

var statusByKind = map[Kind]int{
	KindValidation:     http.StatusBadRequest,
	KindAuthentication: http.StatusUnauthorized,
	KindAuthorization:  http.StatusForbidden,
	KindNotFound:       http.StatusNotFound,
	KindDelivery:       http.StatusInternalServerError,
	KindRateLimited:    http.StatusTooManyRequests,
	KindInternal:       http.StatusInternalServerError,
}

// Error is an anticipated, user-facing failure. Message is safe to show to clients.
type Error struct {
	Kind        Kind
	Message     string
	Cause       error
	Operational bool
	stack       []uintptr
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) StatusCode() int {
	if code, ok := statusByKind[e.Kind]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// Status is "fail" for client errors and "error" for server errors.
func (e *Error) Status() string {
	if e.StatusCode() < 500 {
		return "fail"
	}
	return "error"
}

// Stack renders the frames captured when the error was built.
func (e *Error) Stack() string {
	if len(e.stack) == 0 {
		return ""
	}
	frames := runtime.CallersFrames(e.stack)
	var b strings.Builder
	for {
		f, more := frames.Next()
		fmt.Fprintf(&b, "%s\n\t%s:%d\n", f.Function, f.File, f.Line)
		if !more {
			break
		}
	}
	return b.String()
}

func newError(kind Kind, msg string, cause error) *Error {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	return &Error{Kind: kind, Message: msg, Cause: cause, Operational: true, stack: pcs[:n]}
}

func Validation(msg string) *Error          { return newError(KindValidation, msg, nil) }
func Authentication(msg string) *Error      { return newError(KindAuthentication, msg, nil) }
func Authorization(msg string) *Error       { return newError(KindAuthorization, msg, nil) }
func NotFound(msg string) *Error            { return newError(KindNotFound, msg, nil) }
func RateLimited(msg string) *Error         { return newError(KindRateLimited, msg, nil) }
func Delivery(msg string, err error) *Error { return newError(KindDelivery, msg, err) }

// Internal wraps an unexpected failure. It is not operational: clients only ever see a
// generic message for it.
func Internal(err error) *Error {
	e := newError(KindInternal, "Something went very wrong!", err)
	e.Operational = false
	return e
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
