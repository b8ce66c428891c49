package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is a coarse-grained categorization for ledger errors.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindInvalidState      ErrorKind = "invalid_state"
	KindInvalidAmount     ErrorKind = "invalid_amount"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindInvalidTransfer   ErrorKind = "invalid_transfer"
	KindInvalidArgument   ErrorKind = "invalid_argument"
)

// Sentinel errors, one per kind. They match any *Error of the same kind
// through errors.Is.
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrInvalidAmount     = &Error{Kind: KindInvalidAmount}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds}
	ErrInvalidTransfer   = &Error{Kind: KindInvalidTransfer}
	ErrInvalidArgument   = &Error{Kind: KindInvalidArgument}
)

// Error wraps a failure with the operation that produced it and its kind.
type Error struct {
	Op      string
	Kind    ErrorKind
	Message string
	Err     error
}

// E builds a kinded error for op.
func E(op string, kind ErrorKind, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	base := string(e.Kind)
	if e.Op != "" {
		base = e.Op + ": " + base
	}
	if e.Message != "" {
		base += ": " + e.Message
	}
	if e.Err != nil {
		base += ": " + e.Err.Error()
	}
	return base
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports kind equality so callers can write errors.Is(err, domain.ErrNotFound).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || t == nil || e == nil {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "" for
// infrastructure failures.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind helps callers classify errors without depending on adapters.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
