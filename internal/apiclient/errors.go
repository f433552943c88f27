package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is a non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error (%d %s)", e.Code, http.StatusText(e.Code))
	}
	return fmt.Sprintf("API error (%d): %s", e.Code, e.Message)
}

// retryableError wraps an error to indicate it can be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// StatusCode returns the HTTP status of err, or 0 when err is not a response
// error.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
