package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure returned by the wallet core.
// The HTTP layer maps each kind to a status code.
type ErrorKind string

const (
	KindInvalidAmount     ErrorKind = "INVALID_AMOUNT"
	KindInsufficientFunds ErrorKind = "INSUFFICIENT_FUNDS"
	KindLimitExceeded     ErrorKind = "LIMIT_EXCEEDED"
	KindInvalidPin        ErrorKind = "INVALID_PIN"
	KindPinLocked         ErrorKind = "PIN_LOCKED"
	KindPinNotSet         ErrorKind = "PIN_NOT_SET"
	KindSelfTransfer      ErrorKind = "SELF_TRANSFER"
	KindInvalidState      ErrorKind = "INVALID_STATE"
	KindNotReversible     ErrorKind = "NOT_REVERSIBLE"
	KindGatewayError      ErrorKind = "GATEWAY_ERROR"
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindInvalidRequest    ErrorKind = "INVALID_REQUEST"
)

// Error is a typed failure. Two errors match under errors.Is when their kinds are equal.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

// Is implements the errors.Is interface, matching on Kind only
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is checks
var (
	ErrInvalidAmount     = &Error{Kind: KindInvalidAmount, Message: "amount must be greater than zero"}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds, Message: "available balance is below the requested amount"}
	ErrLimitExceeded     = &Error{Kind: KindLimitExceeded, Message: "spending limit would be exceeded"}
	ErrInvalidPin        = &Error{Kind: KindInvalidPin, Message: "pin does not match"}
	ErrPinLocked         = &Error{Kind: KindPinLocked, Message: "pin is locked after repeated failures"}
	ErrPinNotSet         = &Error{Kind: KindPinNotSet, Message: "wallet pin has not been set"}
	ErrSelfTransfer      = &Error{Kind: KindSelfTransfer, Message: "cannot transfer to the same wallet"}
	ErrInvalidState      = &Error{Kind: KindInvalidState, Message: "operation not allowed in current state"}
	ErrNotReversible     = &Error{Kind: KindNotReversible, Message: "transaction cannot be reversed"}
	ErrGatewayError      = &Error{Kind: KindGatewayError, Message: "payment gateway failure"}
	ErrNotFound          = &Error{Kind: KindNotFound, Message: "resource not found"}
	ErrInvalidRequest    = &Error{Kind: KindInvalidRequest, Message: "request is malformed"}
)

// NewError builds a typed failure with a formatted message
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind of a typed failure anywhere in the chain.
// It returns the empty kind for infrastructure errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
