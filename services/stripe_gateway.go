package services

import (
	"context"
	"encoding/json"
	"strings"

	apperrors "github.com/aamamun24/FineMed-Server/common/errors"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"
)

// StripeGateway runs hosted Checkout sessions and verifies webhook events.
type StripeGateway struct {
	webhookSecret string
	newSession    func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	getSession    func(string, *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	log           *zap.Logger
}

// sessionIDParam is filled in by Stripe when it redirects to the success URL.
const sessionIDParam = "session_id={CHECKOUT_SESSION_ID}"

func NewStripeGateway(secretKey, webhookSecret string, log *zap.Logger) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{webhookSecret: webhookSecret, newSession: session.New, getSession: session.Get, log: log}
}

// InitPayment creates a Checkout session and returns its hosted URL.
func (g *StripeGateway) InitPayment(ctx context.Context, req PaymentRequest) (string, error) {
	currency := strings.ToLower(req.Currency)
	params := &stripe.CheckoutSessionParams{
		Params:            stripe.Params{Context: ctx},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.TransactionID),
		SuccessURL:        stripe.String(withQuery(req.SuccessURL, sessionIDParam)),
		CancelURL:         stripe.String(req.CancelURL),
	}
	if req.Customer.Email != "" {
		params.CustomerEmail = stripe.String(req.Customer.Email)
	}

	if len(req.Lines) == 0 {
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			g.lineItem("FineMed order "+req.OrderRef, 1, MinorUnits(req.Amount), currency),
		}
	}
	for _, l := range req.Lines {
		params.LineItems = append(params.LineItems, g.lineItem(l.Name, l.Quantity, MinorUnits(l.UnitPrice), currency))
	}

	params.AddMetadata("transaction_id", req.TransactionID)
	params.AddMetadata("customer_name", req.Customer.Name)
	params.AddMetadata("customer_phone", req.Customer.Phone)
	params.AddMetadata("fail_url", req.FailURL)

	s, err := g.newSession(params)
	if err != nil {
		g.log.Error("stripe checkout session failed", zap.String("tran_id", req.TransactionID), zap.Error(err))
		return "", err
	}
	g.log.Info("stripe checkout session created",
		zap.String("tran_id", req.TransactionID),
		zap.String("session_id", s.ID))
	return s.URL, nil
}

// ConfirmPayment looks the Checkout session up and reports whether it was
// opened for tranID and is paid.
func (g *StripeGateway) ConfirmPayment(ctx context.Context, tranID, reference string) (bool, error) {
	if reference == "" {
		return false, nil
	}
	s, err := g.getSession(reference, &stripe.CheckoutSessionParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return false, err
	}
	return s.ClientReferenceID == tranID && s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid, nil
}

func withQuery(rawURL, query string) string {
	if strings.Contains(rawURL, "?") {
		return rawURL + "&" + query
	}
	return rawURL + "?" + query
}

func (g *StripeGateway) lineItem(name string, qty int, unitMinor int64, currency string) *stripe.CheckoutSessionLineItemParams {
	return &stripe.CheckoutSessionLineItemParams{
		Quantity: stripe.Int64(int64(qty)),
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(currency),
			UnitAmount: stripe.Int64(unitMinor),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(name),
			},
		},
	}
}

// ParseNotification verifies the Stripe-Signature header and extracts the
// checkout session the event refers to.
func (g *StripeGateway) ParseNotification(payload []byte, signature string) (*PaymentNotification, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		g.log.Warn("stripe webhook signature verification failed", zap.Error(err))
		return nil, apperrors.ErrInvalidSignature.WithErr(err)
	}

	n := &PaymentNotification{
		EventID:   event.ID,
		EventType: string(event.Type),
		Outcome:   outcomeFor(string(event.Type)),
	}
	if n.Outcome == PaymentIgnored {
		return n, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, apperrors.Validation("Malformed checkout session payload").WithErr(err)
	}
	n.TransactionID = sess.ClientReferenceID
	if n.TransactionID == "" {
		n.TransactionID = sess.Metadata["transaction_id"]
	}
	n.AmountMinor = sess.AmountTotal
	n.Currency = string(sess.Currency)

	// Delayed payment methods complete the session before the money arrives.
	if n.EventType == "checkout.session.completed" && sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		n.Outcome = PaymentIgnored
	}
	return n, nil
}

func outcomeFor(eventType string) PaymentOutcome {
	switch eventType {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		return PaymentSucceeded
	case "checkout.session.async_payment_failed":
		return PaymentFailed
	case "checkout.session.expired":
		return PaymentCancelled
	default:
		return PaymentIgnored
	}
}
