package service

import (
	"errors"
	"fmt"
)

// ErrorKind names a failure class callers can branch on.
type ErrorKind string

const (
	KindValidation              ErrorKind = "ValidationError"
	KindPolicyNotAccepted       ErrorKind = "PolicyNotAccepted"
	KindPaymentInfoMissing      ErrorKind = "PaymentInfoMissing"
	KindProductNotFound         ErrorKind = "ProductNotFound"
	KindProductUnavailable      ErrorKind = "ProductUnavailable"
	KindInsufficientStock       ErrorKind = "InsufficientStock"
	KindTransactionFailed       ErrorKind = "TransactionFailed"
	KindOrderNotFound           ErrorKind = "OrderNotFound"
	KindForbidden               ErrorKind = "Forbidden"
	KindInvalidStatusTransition ErrorKind = "InvalidStatusTransition"
	KindDuplicateRequest        ErrorKind = "DuplicateRequest"
)

var (
	ErrValidation              = errors.New("validation failed")
	ErrPolicyNotAccepted       = errors.New("store policy not accepted")
	ErrPaymentInfoMissing      = errors.New("transaction id is required for mobile wallet payments")
	ErrProductNotFound         = errors.New("product not found")
	ErrProductUnavailable      = errors.New("product is not available for ordering")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrTransactionFailed       = errors.New("order transaction failed")
	ErrOrderNotFound           = errors.New("order not found")
	ErrForbidden               = errors.New("admin access required")
	ErrInvalidStatusTransition = errors.New("illegal transition of order status")
	ErrDuplicateRequest        = errors.New("request with this idempotency key is already in progress")
)

var sentinels = map[ErrorKind]error{
	KindValidation:              ErrValidation,
	KindPolicyNotAccepted:       ErrPolicyNotAccepted,
	KindPaymentInfoMissing:      ErrPaymentInfoMissing,
	KindProductNotFound:         ErrProductNotFound,
	KindProductUnavailable:      ErrProductUnavailable,
	KindInsufficientStock:       ErrInsufficientStock,
	KindTransactionFailed:       ErrTransactionFailed,
	KindOrderNotFound:           ErrOrderNotFound,
	KindForbidden:               ErrForbidden,
	KindInvalidStatusTransition: ErrInvalidStatusTransition,
	KindDuplicateRequest:        ErrDuplicateRequest,
}

// OrderError is the error returned by every service operation. It matches its
// kind's sentinel with errors.Is, and also any underlying cause.
type OrderError struct {
	Kind    ErrorKind
	Message string
	// RemainingStock is set for InsufficientStock only.
	RemainingStock *int
	Err            error
}

func (e *OrderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *OrderError) Is(target error) bool {
	return sentinels[e.Kind] == target
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, format string, args ...any) *OrderError {
	return &OrderError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapError(kind ErrorKind, err error, format string, args ...any) *OrderError {
	return &OrderError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func stockError(productID string, remaining int) *OrderError {
	return &OrderError{
		Kind:           KindInsufficientStock,
		Message:        fmt.Sprintf("only %d left in stock for product %s", remaining, productID),
		RemainingStock: &remaining,
	}
}

// KindOf reports the kind of err, or "" when err did not come from this package.
func KindOf(err error) ErrorKind {
	var oe *OrderError
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return ""
}
