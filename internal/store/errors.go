package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies store failures so callers can react without knowing the driver.
type ErrorKind int

const (
	KindQuery ErrorKind = iota
	KindNotFound
	KindConnection
	KindTimeout
	KindAuth
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConnection:
		return "connection"
	case KindTimeout:
		return "timeout"
	case KindAuth:
		return "auth"
	case KindConflict:
		return "conflict"
	default:
		return "query"
	}
}

// Unavailable reports whether the kind means the store could not be reached.
func (k ErrorKind) Unavailable() bool {
	return k == KindConnection || k == KindTimeout || k == KindAuth
}

// Error is a classified store failure.
type Error struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified error.
func NewError(op string, kind ErrorKind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf extracts the kind of err. Unclassified errors are KindQuery, except
// context expiry which is KindTimeout.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindQuery
}

// IsNotFound reports whether err is a missing-document failure.
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}

// IsConflict reports whether err is a key collision or revision mismatch.
func IsConflict(err error) bool {
	return err != nil && KindOf(err) == KindConflict
}

func classifyContext(err error) (ErrorKind, bool) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout, true
	case errors.Is(err, context.Canceled):
		return KindConnection, true
	}
	return KindQuery, false
}
