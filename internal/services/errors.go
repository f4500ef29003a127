package services

import (
	"errors"

	"github.com/nimasrn/poultry-ledger/pkg/logger"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is returned by every service operation. Message is safe to show to
// clients; Err carries the underlying cause, if any.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind and message, so callers can
// compare against values built by the helpers below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == e.Message
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// Internal logs cause with the operation name and hides it behind msg.
func Internal(op, msg string, cause error, kv ...any) *Error {
	logger.Error(msg, append([]any{"op", op, "error", cause}, kv...)...)
	return &Error{Kind: KindInternal, Message: msg, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain. Errors that are
// not *Error are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-safe message of err, or fallback when err is
// not an *Error.
func MessageOf(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}

var (
	ErrCustomerNotFound    = NotFound("Customer not found")
	ErrTransactionNotFound = NotFound("Transaction not found")
	ErrDuplicatePhone      = Conflict("Customer with this phone number already exists")
	ErrWeightAndRate       = Validation("Weight and rate are required")
	ErrInvalidDate         = Validation("Invalid date format")
)
