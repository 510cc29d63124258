package target

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error is a failed call against the target. Status is zero when no HTTP
// response was received.
type Error struct {
	Op        string
	Status    int
	Body      string
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	default:
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth retrying: connection failures,
// timeouts, rate limiting and server errors.
func IsTransient(err error) bool {
	var terr *Error
	if errors.As(err, &terr) {
		return terr.Transient
	}
	return false
}

func transientStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// transportError wraps a failure to get any response. Everything except an
// explicit cancellation counts as transient, timeouts included.
func transportError(op string, err error) *Error {
	return &Error{Op: op, Transient: !errors.Is(err, context.Canceled), Err: err}
}
