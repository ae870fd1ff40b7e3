package services

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"time"

	"github.com/aamamun24/FineMed-Server/models"
	awspkg "github.com/aamamun24/FineMed-Server/pkg/aws"
	"github.com/aamamun24/FineMed-Server/repository"
	"github.com/aamamun24/FineMed-Server/sender"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// Notifier accepts order notifications for delivery.
type Notifier interface {
	Notify(ctx context.Context, n models.OrderNotification) error
}

type notificationKind struct {
	template string
	subject  string
	sms      func(n models.OrderNotification) string
}

var notificationKinds = map[string]notificationKind{
	models.NotificationOrderCreated: {
		template: "order_created.html",
		subject:  "FineMed Order Confirmation",
		sms: func(n models.OrderNotification) string {
			return fmt.Sprintf("FineMed: order %s received (%s). Thank you, %s!", n.OrderID, n.Status, n.Name)
		},
	},
	models.NotificationOrderStatusChanged: {
		template: "order_status_changed.html",
		subject:  "FineMed Order Status Update",
		sms: func(n models.OrderNotification) string {
			return fmt.Sprintf("FineMed: order %s is now %s.", n.OrderID, n.Status)
		},
	},
}

// NotificationService renders order notifications and sends them by email
// and, when configured, SMS. Every delivery outcome is logged to the
// notification_logs table.
type NotificationService struct {
	repo      repository.NotificationRepository
	email     sender.EmailSender
	sms       sender.SMSSender
	templates *template.Template
	attempts  int
	backoff   time.Duration
	metrics   *awspkg.MetricsClient
	log       *zap.Logger
}

// NewNotificationService parses the embedded templates. sms may be nil.
func NewNotificationService(repo repository.NotificationRepository, email sender.EmailSender, sms sender.SMSSender, metrics *awspkg.MetricsClient, log *zap.Logger) (*NotificationService, error) {
	tmpls, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse notification templates: %w", err)
	}
	return &NotificationService{
		repo:      repo,
		email:     email,
		sms:       sms,
		templates: tmpls,
		attempts:  3,
		backoff:   time.Second,
		metrics:   metrics,
		log:       log,
	}, nil
}

// Notify delivers n synchronously.
func (s *NotificationService) Notify(ctx context.Context, n models.OrderNotification) error {
	kind, ok := notificationKinds[n.Type]
	if !ok {
		return fmt.Errorf("unsupported notification type: %s", n.Type)
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, kind.template, n); err != nil {
		return fmt.Errorf("template render failed: %w", err)
	}

	if n.Email != "" {
		s.sendWithRetry(ctx, n, models.ChannelEmail, n.Email, func(ctx context.Context) (sender.SendResult, error) {
			return s.email.SendEmail(ctx, n.Email, kind.subject, buf.String())
		})
	} else {
		s.log.Warn("missing email recipient, skipping channel", zap.String("type", n.Type), zap.String("order_id", n.OrderID))
	}

	if s.sms != nil && n.Phone != "" {
		body := kind.sms(n)
		s.sendWithRetry(ctx, n, models.ChannelSMS, n.Phone, func(ctx context.Context) (sender.SendResult, error) {
			return s.sms.SendSMS(ctx, n.Phone, body)
		})
	}
	return nil
}

func (s *NotificationService) sendWithRetry(ctx context.Context, n models.OrderNotification, channel, to string, send func(context.Context) (sender.SendResult, error)) {
	var (
		lastErr error
		result  sender.SendResult
		retries int
	)
retry:
	for attempt := 1; attempt <= s.attempts; attempt++ {
		result, lastErr = send(ctx)
		if lastErr == nil {
			break
		}
		s.log.Warn("send attempt failed",
			zap.String("channel", channel),
			zap.String("type", n.Type),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))
		if attempt == s.attempts {
			break
		}

		retries++
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			break retry
		case <-time.After(time.Duration(attempt) * s.backoff):
		}
	}

	entry := &models.NotificationLog{
		OrderID:    n.OrderID,
		Recipient:  to,
		Type:       n.Type,
		Channel:    channel,
		Status:     models.NotificationSent,
		RetryCount: retries,
	}
	if lastErr != nil {
		entry.Status = models.NotificationFailed
		entry.Error = lastErr.Error()
	} else {
		s.metrics.CountAsync(awspkg.MetricNotificationsSent, map[string]string{"Channel": channel})
	}

	s.log.Info("notification processed",
		zap.String("type", n.Type),
		zap.String("channel", channel),
		zap.String("status", entry.Status),
		zap.String("message_id", result.MessageID))

	if err := s.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		s.log.Error("failed to save notification log", zap.Error(err))
	}
}

// Logs lists delivery records, optionally for one order.
func (s *NotificationService) Logs(ctx context.Context, orderID string, page, limit int) ([]models.NotificationLog, models.PaginationMeta, error) {
	page, limit = repository.NormalizePage(page, limit)
	logs, total, err := s.repo.List(ctx, orderID, page, limit)
	if err != nil {
		return nil, models.PaginationMeta{}, err
	}
	return logs, models.NewPaginationMeta(page, limit, total), nil
}

// QueueSender is satisfied by the SQS client.
type QueueSender interface {
	Send(ctx context.Context, body string, attrs map[string]string) error
}

// QueueNotifier hands notifications to the notification queue for the
// background consumer.
type QueueNotifier struct {
	queue QueueSender
}

func NewQueueNotifier(q QueueSender) *QueueNotifier {
	return &QueueNotifier{queue: q}
}

func (q *QueueNotifier) Notify(ctx context.Context, n models.OrderNotification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return q.queue.Send(ctx, string(body), map[string]string{"type": n.Type})
}
