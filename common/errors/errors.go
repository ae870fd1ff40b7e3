package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error. The HTTP status is derived from it.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindInsufficientStock Kind = "insufficient_stock"
	KindForbidden         Kind = "forbidden"
	KindUnauthorized      Kind = "unauthorized"
	KindValidation        Kind = "validation_error"
	KindUpstream          Kind = "upstream_failure"
	KindInternal          Kind = "internal"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Kind    Kind   `json:"kind"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Reason when the target carries one, otherwise on Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Reason != "" {
		return t.Reason == e.Reason
	}
	return t.Kind != "" && t.Kind == e.Kind
}

// WithMessage returns a copy carrying a more specific message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// WithErr returns a copy wrapping the underlying cause.
func (e *Error) WithErr(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

// WithDetails returns a copy carrying client-visible details.
func (e *Error) WithDetails(details any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// New creates a new Error
func New(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Kind:    kindForStatus(code),
		Message: message,
		Err:     err,
	}
}

func newReason(kind Kind, reason, message string) *Error {
	return &Error{Code: StatusFor(kind), Kind: kind, Reason: reason, Message: message}
}

// StatusFor maps an error kind to its HTTP status code.
func StatusFor(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindInsufficientStock:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusBadRequest
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func kindForStatus(code int) Kind {
	switch code {
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return KindUpstream
	default:
		return KindInternal
	}
}

// From converts any error into an *Error. Unknown errors become Internal
// with a generic message; the cause is kept for logging only.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrInternal.WithErr(err)
}

// NotFound builds a not-found error with a custom message.
func NotFound(message string) *Error { return newReason(KindNotFound, "", message) }

// Conflict builds a conflict error with a custom message.
func Conflict(message string) *Error { return newReason(KindConflict, "", message) }

func Forbidden(message string) *Error { return newReason(KindForbidden, "", message) }

func Unauthorized(message string) *Error { return newReason(KindUnauthorized, "", message) }

// Validation builds a 400 error for malformed input.
func Validation(message string) *Error { return newReason(KindValidation, "", message) }

func Upstream(message string) *Error { return newReason(KindUpstream, "", message) }

func Internal(message string) *Error { return newReason(KindInternal, "", message) }

// InsufficientStock names the product whose stock cannot cover the request.
func InsufficientStock(productID string) *Error {
	return ErrInsufficientStock.WithMessage("Insufficient stock for product %s", productID)
}

// Common error types
var (
	ErrValidation   = newReason(KindValidation, "validation", "Validation error")
	ErrUnauthorized = newReason(KindUnauthorized, "unauthorized", "You are not authorized")
	ErrForbidden    = newReason(KindForbidden, "forbidden", "Forbidden")
	ErrInternal     = newReason(KindInternal, "internal", "Internal server error")
	ErrNotFound     = newReason(KindNotFound, "route_not_found", "Not found")
)

// Authentication error types
var (
	ErrInvalidCredentials = newReason(KindUnauthorized, "invalid_credentials", "Invalid password")
	ErrTokenExpired       = newReason(KindUnauthorized, "token_expired", "Token has expired")
	ErrInvalidToken       = newReason(KindUnauthorized, "invalid_token", "Invalid token")
	ErrTokenStale         = newReason(KindUnauthorized, "token_stale", "Password changed after the token was issued")
	ErrInsufficientRole   = newReason(KindForbidden, "insufficient_role", "Insufficient role permissions")
)

// User error types
var (
	ErrUserNotFound    = newReason(KindNotFound, "user_not_found", "User not found")
	ErrUserDeleted     = newReason(KindForbidden, "user_deleted", "User is deleted")
	ErrUserDeactivated = newReason(KindForbidden, "user_deactivated", "User is deactivated")
	ErrUserExists      = newReason(KindConflict, "user_exists", "User with this email or phone already exists")
)

// Business logic error types
var (
	ErrProductNotFound           = newReason(KindNotFound, "product_not_found", "Product not found")
	ErrOrderNotFound             = newReason(KindNotFound, "order_not_found", "Order not found")
	ErrTransactionNotFound       = newReason(KindNotFound, "transaction_not_found", "Transaction not found")
	ErrReviewNotFound            = newReason(KindNotFound, "review_not_found", "Review not found")
	ErrInsufficientStock         = newReason(KindInsufficientStock, "insufficient_stock", "Insufficient stock")
	ErrOutOfStock                = newReason(KindInsufficientStock, "out_of_stock", "Out of stock")
	ErrPrescriptionRequired      = newReason(KindValidation, "prescription_required", "Prescription Required but not provided!")
	ErrVerificationNotApplicable = newReason(KindValidation, "verification_not_applicable", "Prescription verification not required for this order")
	ErrPaymentInitiationFailed   = newReason(KindUpstream, "payment_initiation_failed", "Payment initiation failed")
	ErrInvalidStatusTransition   = newReason(KindConflict, "invalid_status_transition", "Invalid order status transition")
	ErrOrderLocked               = newReason(KindConflict, "order_locked", "Order can no longer be modified")
	ErrOrderChanged              = newReason(KindConflict, "order_changed", "Order changed concurrently, reload and retry")
	ErrInvalidSignature          = newReason(KindUnauthorized, "invalid_signature", "invalid payment notification signature")
	ErrNoOrders                  = newReason(KindValidation, "no_orders", "Make an order first to post reviews!")
)
