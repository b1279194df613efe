package booking

import "errors"

// Kind is the machine-readable error category returned to callers.
type Kind string

const (
	KindInvalidReference         Kind = "INVALID_REFERENCE"
	KindInvalidState             Kind = "INVALID_STATE"
	KindOutOfStock               Kind = "OUT_OF_STOCK"
	KindCancellationWindowClosed Kind = "CANCELLATION_WINDOW_CLOSED"
	KindAmountMismatch           Kind = "AMOUNT_MISMATCH"
	KindVerificationFailed       Kind = "VERIFICATION_FAILED"
	KindGatewayUnavailable       Kind = "GATEWAY_UNAVAILABLE"
	KindInvalidInput             Kind = "INVALID_INPUT"
	KindNotFound                 Kind = "NOT_FOUND"
	KindBusy                     Kind = "BUSY"
	KindInternal                 Kind = "INTERNAL"
)

// Error carries a Kind plus a human-readable message. errors.Is matches on
// Kind alone, so errors.Is(err, ErrOutOfStock) works for any message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidReference         = &Error{Kind: KindInvalidReference}
	ErrInvalidState             = &Error{Kind: KindInvalidState}
	ErrOutOfStock               = &Error{Kind: KindOutOfStock}
	ErrCancellationWindowClosed = &Error{Kind: KindCancellationWindowClosed}
	ErrAmountMismatch           = &Error{Kind: KindAmountMismatch}
	ErrVerificationFailed       = &Error{Kind: KindVerificationFailed}
	ErrGatewayUnavailable       = &Error{Kind: KindGatewayUnavailable}
	ErrInvalidInput             = &Error{Kind: KindInvalidInput}
	ErrNotFound                 = &Error{Kind: KindNotFound}
	ErrBusy                     = &Error{Kind: KindBusy}
)

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the Kind of err; anything unclassified is internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Retryable reports whether the same request may succeed later unchanged.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindGatewayUnavailable, KindBusy:
		return true
	}
	return false
}
