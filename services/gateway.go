package services

import (
	"context"

	"github.com/shopspring/decimal"
)

// PaymentOutcome is what a gateway notification means for an order.
type PaymentOutcome string

const (
	PaymentSucceeded PaymentOutcome = "success"
	PaymentFailed    PaymentOutcome = "failure"
	PaymentCancelled PaymentOutcome = "cancel"
	PaymentIgnored   PaymentOutcome = "ignored"
)

type Customer struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

type PaymentLine struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// PaymentRequest starts a hosted payment for one order.
type PaymentRequest struct {
	TransactionID string
	OrderRef      string
	Amount        decimal.Decimal
	Currency      string
	Customer      Customer
	Lines         []PaymentLine
	SuccessURL    string
	FailURL       string
	CancelURL     string
}

// PaymentNotification is a verified server-to-server notification.
type PaymentNotification struct {
	EventID       string
	EventType     string
	Outcome       PaymentOutcome
	TransactionID string
	AmountMinor   int64
	Currency      string
}

// PaymentGateway starts payments and authenticates the gateway's
// notifications.
type PaymentGateway interface {
	// InitPayment returns the URL the customer is redirected to.
	InitPayment(ctx context.Context, req PaymentRequest) (string, error)
	// ParseNotification verifies signature over payload. Any failure is
	// returned as ErrInvalidSignature.
	ParseNotification(payload []byte, signature string) (*PaymentNotification, error)
	// ConfirmPayment asks the gateway whether the payment behind reference
	// belongs to tranID and has been captured.
	ConfirmPayment(ctx context.Context, tranID, reference string) (bool, error)
}

// MinorUnits converts an amount to the smallest currency unit.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
