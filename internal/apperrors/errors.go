package apperrors

import (
	"errors"
	"fmt"
)

// Kind is the stable error taxonomy surfaced to callers so UIs can branch
// without string matching.
type Kind string

const (
	KindNotFound           Kind = "NOT_FOUND"
	KindInvalidArgument    Kind = "INVALID_ARGUMENT"
	KindNotAuthorized      Kind = "NOT_AUTHORIZED"
	KindFailedPrecondition Kind = "FAILED_PRECONDITION"
	KindExpired            Kind = "EXPIRED"
	KindInternal           Kind = "INTERNAL"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// Is matches on code so sentinel comparisons survive Wrap.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

// Wrap returns a copy of e carrying cause for logs; the caller-visible kind,
// code and message are unchanged.
func (e *Error) Wrap(cause error) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: e.Message, wrapped: cause}
}

// Failure kinds surfaced by the accept path.
var (
	ErrOfferExpired         = &Error{Kind: KindExpired, Code: "OFFER_EXPIRED", Message: "offer is no longer available"}
	ErrOfferNotPending      = &Error{Kind: KindFailedPrecondition, Code: "OFFER_NOT_PENDING", Message: "offer has already been resolved"}
	ErrRideNotDispatchable  = &Error{Kind: KindFailedPrecondition, Code: "RIDE_NOT_DISPATCHABLE", Message: "ride has already been taken or ended"}
	ErrDriverUnavailable    = &Error{Kind: KindFailedPrecondition, Code: "DRIVER_UNAVAILABLE", Message: "driver is busy or offline"}
	ErrTxnConflict          = &Error{Kind: KindFailedPrecondition, Code: "TXN_CONFLICT", Message: "storage conflict, retry"}
	ErrPaymentNotAuthorized = &Error{Kind: KindFailedPrecondition, Code: "PAYMENT_NOT_AUTHORIZED", Message: "payment has not been authorized"}
)

func NotFound(what string) *Error {
	return &Error{Kind: KindNotFound, Code: "NOT_FOUND", Message: what + " not found"}
}

func InvalidArgument(msg string) *Error {
	return &Error{Kind: KindInvalidArgument, Code: "INVALID_ARGUMENT", Message: msg}
}

func NotAuthorized(msg string) *Error {
	return &Error{Kind: KindNotAuthorized, Code: "NOT_AUTHORIZED", Message: msg}
}

func FailedPrecondition(code, msg string) *Error {
	return &Error{Kind: KindFailedPrecondition, Code: code, Message: msg}
}

func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL", Message: "internal error", wrapped: cause}
}

// KindOf extracts the taxonomy kind, defaulting to internal for unknown
// errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf extracts the stable code, defaulting to INTERNAL.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "INTERNAL"
}
