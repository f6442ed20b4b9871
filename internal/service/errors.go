package service

import (
	"errors"
	"fmt"

	"ebike-booking/internal/store"
)

// Error kinds. Every *Error unwraps to exactly one of these.
var (
	ErrValidation       = errors.New("validation failed")
	ErrIdentityMismatch = errors.New("identity mismatch")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrUnavailable      = errors.New("dependency unavailable")
)

// Error is a domain failure with a machine code and a human-readable reason.
type Error struct {
	Kind   error
	Code   string
	Reason string
	Detail map[string]interface{}
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.cause)
	}
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, code, reason string) *Error {
	return &Error{Kind: kind, Code: code, Reason: reason}
}

func validationError(code, format string, args ...interface{}) *Error {
	return newError(ErrValidation, code, fmt.Sprintf(format, args...))
}

func conflictError(code, format string, args ...interface{}) *Error {
	return newError(ErrConflict, code, fmt.Sprintf(format, args...))
}

func forbiddenError(reason string) *Error {
	return newError(ErrIdentityMismatch, "identity_mismatch", reason)
}

func notFoundError(orderID string) *Error {
	return newError(ErrNotFound, "booking_not_found", fmt.Sprintf("booking %s not found", orderID))
}

// storeError translates repository failures into domain errors.
func storeError(err error, orderID string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return notFoundError(orderID)
	case errors.Is(err, store.ErrDuplicate):
		return conflictError("duplicate_order", "order id %s is already in use", orderID)
	case errors.Is(err, store.ErrStale):
		return conflictError("concurrent_update", "booking %s was changed by another request, reload and retry", orderID)
	default:
		return &Error{Kind: ErrUnavailable, Code: "store_unavailable", Reason: "booking store unavailable", cause: err}
	}
}
