// Package suisen provides a Go client for the Suisen candidate-matching API.
package suisen

import (
	"errors"
	"fmt"
)

// Error is an error response from the Suisen API, carrying the HTTP status
// code, the server's error code, and its message. RequestID is the server's
// request identifier for correlating with server logs; it may be empty when
// the response never reached a handler.
type Error struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("suisen: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 404
	}
	return false
}

// IsInvalid reports whether err is a 400 from the API.
func IsInvalid(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 400
	}
	return false
}

// IsRateLimited reports whether err is a 429 from the API.
func IsRateLimited(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 429
	}
	return false
}

// IsTimeout reports whether err is a 504, which the server returns when
// an upstream (vector index, LLM parser) missed its deadline.
func IsTimeout(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 504
	}
	return false
}
