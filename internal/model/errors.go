package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so callers can pick the documented
// recovery path (fallback, surface, or treat-as-not-found).
type ErrorKind string

const (
	KindNotFound       ErrorKind = "not_found"
	KindTenantMismatch ErrorKind = "tenant_mismatch"
	KindTimeout        ErrorKind = "timeout"
	KindTransport      ErrorKind = "transport_error"
	KindInvariant      ErrorKind = "invariant_violation"
	KindValidation     ErrorKind = "validation_error"
	KindInternal       ErrorKind = "internal"
)

// Error is the typed error carried across component boundaries. Op names
// the failing operation ("graph.GetTeam"), Msg is human-readable, and Err
// holds the wrapped cause when one exists.
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, string(e.Kind))
	}
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound builds a KindNotFound error.
func NotFound(op, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// TenantMismatch builds a KindTenantMismatch error. ExternalKind maps it
// to NotFound so a foreign tenant cannot probe for existence.
func TenantMismatch(op, format string, args ...any) *Error {
	return &Error{Kind: KindTenantMismatch, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Timeout wraps a deadline expiry.
func Timeout(op string, err error) *Error {
	return &Error{Kind: KindTimeout, Op: op, Msg: "deadline exceeded", Err: err}
}

// Transport wraps an unreachable external store.
func Transport(op string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

// Invariant reports a programmer error; no recovery path exists.
func Invariant(op, format string, args ...any) *Error {
	return &Error{Kind: KindInvariant, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Validation reports malformed caller input.
func Validation(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Internal wraps an unclassified failure.
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Op: op, Err: err}
}

// KindOf walks the chain and returns the first typed kind, or KindInternal
// when the error carries none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ExternalKind is KindOf with tenant-mismatch collapsed into not-found.
func ExternalKind(err error) ErrorKind {
	k := KindOf(err)
	if k == KindTenantMismatch {
		return KindNotFound
	}
	return k
}

// IsNotFound reports whether err is a not-found or tenant-mismatch error.
func IsNotFound(err error) bool {
	k := KindOf(err)
	return k == KindNotFound || k == KindTenantMismatch
}

// IsTimeout reports whether err carries KindTimeout.
func IsTimeout(err error) bool { return KindOf(err) == KindTimeout }

// IsTransport reports whether err carries KindTransport.
func IsTransport(err error) bool { return KindOf(err) == KindTransport }
