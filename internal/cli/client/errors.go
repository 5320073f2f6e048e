package client

import (
	"errors"
	"fmt"
	"net/http"
)

// FetchError is returned for transport failures (Status 0) and error responses.
// Transient errors are worth retrying; the rest need the caller to change something.
type FetchError struct {
	Op        string
	Status    int
	Message   string
	Transient bool
	Err       error
}

func (e *FetchError) Error() string {
	switch {
	case e.Status == 0 && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: http %d: %s: %v", e.Op, e.Status, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: http %d: %s", e.Op, e.Status, e.Message)
	default:
		return fmt.Sprintf("%s: http %d", e.Op, e.Status)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether repeating the same request may succeed.
func (e *FetchError) Retryable() bool { return e.Transient }

func transientStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return status >= 500
}

// IsTransient reports whether err is a FetchError that may succeed on retry.
func IsTransient(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Transient
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Status
	}
	return 0
}
