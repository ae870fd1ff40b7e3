package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	apperrors "github.com/aamamun24/FineMed-Server/common/errors"
	"github.com/aamamun24/FineMed-Server/models"
	awspkg "github.com/aamamun24/FineMed-Server/pkg/aws"
	"github.com/aamamun24/FineMed-Server/repository"
	"go.uber.org/zap"
)

const notificationDedupTTL = 48 * time.Hour

// NotifyResult reports what a gateway notification did.
type NotifyResult struct {
	Status  string `json:"status"`
	OrderID string `json:"orderId,omitempty"`
}

const (
	NotifyProcessed = "processed"
	NotifyDuplicate = "duplicate"
	NotifyIgnored   = "ignored"
)

// PaymentService applies gateway callbacks to orders. It never touches stock.
type PaymentService struct {
	orders      repository.OrderRepository
	gateway     PaymentGateway
	dedup       IdempotencyStore
	events      EventPublisher
	notifier    Notifier
	metrics     *awspkg.MetricsClient
	frontendURL string
	log         *zap.Logger
	async       func(func())
}

// NewPaymentService builds the callback handler. dedup, notifier and metrics
// may be nil.
func NewPaymentService(orders repository.OrderRepository, gateway PaymentGateway, dedup IdempotencyStore, events EventPublisher, notifier Notifier, metrics *awspkg.MetricsClient, frontendURL string, log *zap.Logger) *PaymentService {
	if events == nil {
		events = NoopPublisher{}
	}
	return &PaymentService{
		orders:      orders,
		gateway:     gateway,
		dedup:       dedup,
		events:      events,
		notifier:    notifier,
		metrics:     metrics,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		log:         log,
		async:       func(f func()) { go f() },
	}
}

// OnPaymentSuccess marks an unpaid order paid once the gateway confirms the
// payment behind reference. Without confirmation the order is left for the
// signed notification to settle. Orders already paid or further along are left
// as they are. It returns the frontend redirect URL.
func (s *PaymentService) OnPaymentSuccess(ctx context.Context, tranID, reference string) (string, error) {
	order, err := s.orders.FindByTransactionID(ctx, tranID)
	if err != nil {
		return "", err
	}
	if slices.Contains(awaitingPayment, order.Status) {
		confirmed, err := s.gateway.ConfirmPayment(ctx, tranID, reference)
		switch {
		case err != nil:
			s.log.Warn("payment confirmation failed, awaiting notification", zap.String("tran_id", tranID), zap.Error(err))
		case !confirmed:
			s.log.Info("success redirect not confirmed by gateway, awaiting notification", zap.String("tran_id", tranID))
		default:
			if _, err := s.transition(ctx, order, PaymentSucceeded); err != nil {
				return "", err
			}
		}
	}
	return s.redirect("payment-success", tranID), nil
}

// OnPaymentFailure marks a pending order unpaid.
func (s *PaymentService) OnPaymentFailure(ctx context.Context, tranID string) (string, error) {
	if _, err := s.apply(ctx, tranID, PaymentFailed); err != nil {
		return "", err
	}
	return s.redirect("payment-fail", tranID), nil
}

// OnPaymentCancel puts an unpaid order back to pending.
func (s *PaymentService) OnPaymentCancel(ctx context.Context, tranID string) (string, error) {
	if _, err := s.apply(ctx, tranID, PaymentCancelled); err != nil {
		return "", err
	}
	return s.redirect("payment-cancel", tranID), nil
}

// OnPaymentNotify handles a server-to-server notification. The signature is
// verified first, repeated deliveries are acknowledged without effect and the
// amount must match the order.
func (s *PaymentService) OnPaymentNotify(ctx context.Context, payload []byte, signature string) (*NotifyResult, error) {
	n, err := s.gateway.ParseNotification(payload, signature)
	if err != nil {
		return nil, err
	}
	if n.Outcome == PaymentIgnored {
		s.log.Info("payment notification ignored", zap.String("event_type", n.EventType), zap.String("event_id", n.EventID))
		return &NotifyResult{Status: NotifyIgnored}, nil
	}

	key := "ipn:" + n.EventID
	claimed := false
	if s.dedup != nil && n.EventID != "" {
		first, err := s.dedup.Claim(ctx, key, notificationDedupTTL)
		switch {
		case err != nil:
			s.log.Warn("payment notification dedup unavailable, processing anyway", zap.String("event_id", n.EventID), zap.Error(err))
		case !first:
			s.log.Info("duplicate payment notification", zap.String("event_id", n.EventID))
			return &NotifyResult{Status: NotifyDuplicate}, nil
		default:
			claimed = true
		}
	}

	order, err := s.process(ctx, n)
	if err != nil {
		if claimed {
			if ferr := s.dedup.Forget(context.WithoutCancel(ctx), key); ferr != nil {
				s.log.Warn("failed to clear dedup key", zap.String("key", key), zap.Error(ferr))
			}
		}
		return nil, err
	}
	return &NotifyResult{Status: NotifyProcessed, OrderID: order.ID.String()}, nil
}

func (s *PaymentService) process(ctx context.Context, n *PaymentNotification) (*models.Order, error) {
	if n.TransactionID == "" {
		return nil, apperrors.Validation("Payment notification carries no transaction id")
	}
	order, err := s.orders.FindByTransactionID(ctx, n.TransactionID)
	if err != nil {
		return nil, err
	}

	expected := MinorUnits(order.TotalPrice)
	if n.AmountMinor != expected || !strings.EqualFold(n.Currency, order.Currency) {
		s.log.Warn("payment notification amount mismatch",
			zap.String("tran_id", n.TransactionID),
			zap.Int64("expected", expected),
			zap.Int64("got", n.AmountMinor),
			zap.String("currency", n.Currency))
		return nil, apperrors.Validation(fmt.Sprintf("Payment amount %d %s does not match order amount %d %s",
			n.AmountMinor, strings.ToLower(n.Currency), expected, order.Currency))
	}

	if _, err := s.transition(ctx, order, n.Outcome); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *PaymentService) apply(ctx context.Context, tranID string, outcome PaymentOutcome) (*models.Order, error) {
	order, err := s.orders.FindByTransactionID(ctx, tranID)
	if err != nil {
		return nil, err
	}
	if _, err := s.transition(ctx, order, outcome); err != nil {
		return nil, err
	}
	return order, nil
}

// transition moves order for a payment outcome with a conditional write, so
// concurrent callbacks for the same order settle on one result. Orders past
// the payment step are never moved back.
func (s *PaymentService) transition(ctx context.Context, order *models.Order, outcome PaymentOutcome) (bool, error) {
	var (
		from []models.OrderStatus
		to   models.OrderStatus
	)
	switch outcome {
	case PaymentSucceeded:
		from, to = awaitingPayment, models.StatusPaid
	case PaymentFailed:
		from, to = []models.OrderStatus{models.StatusPending}, models.StatusUnpaid
	case PaymentCancelled:
		from, to = []models.OrderStatus{models.StatusUnpaid}, models.StatusPending
	default:
		return false, nil
	}

	if !slices.Contains(from, order.Status) {
		s.log.Info("payment callback left order unchanged",
			zap.String("order_id", order.ID.String()),
			zap.String("status", string(order.Status)),
			zap.String("outcome", string(outcome)))
		return false, nil
	}

	changed, err := s.orders.UpdateStatusIf(ctx, order.ID, from, to)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	prev := order.Status
	order.Status = to
	s.log.Info("order payment status updated",
		zap.String("order_id", order.ID.String()),
		zap.String("tran_id", order.TransactionID),
		zap.String("from", string(prev)),
		zap.String("to", string(to)))

	switch outcome {
	case PaymentSucceeded:
		s.metrics.CountAsync(awspkg.MetricPaymentSucceeded, nil)
	case PaymentFailed:
		s.metrics.CountAsync(awspkg.MetricPaymentFailed, nil)
	}

	evt := orderEvent(models.EventOrderStatusChanged, order, prev)
	note := orderNotification(models.NotificationOrderStatusChanged, order)
	bg := context.WithoutCancel(ctx)
	s.async(func() {
		if err := s.events.Publish(bg, evt); err != nil {
			s.log.Warn("order event publish failed", zap.Error(err))
		}
		if s.notifier != nil && to == models.StatusPaid {
			if err := s.notifier.Notify(bg, note); err != nil {
				s.log.Warn("payment notification email failed", zap.Error(err))
			}
		}
	})
	return true, nil
}

func (s *PaymentService) redirect(kind, tranID string) string {
	return fmt.Sprintf("%s/%s/%s", s.frontendURL, kind, tranID)
}
