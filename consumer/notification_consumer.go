package consumer

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/aamamun24/FineMed-Server/models"
	awspkg "github.com/aamamun24/FineMed-Server/pkg/aws"
	"go.uber.org/zap"
)

// Poller is satisfied by the SQS client.
type Poller interface {
	Poll(ctx context.Context, handler awspkg.MessageHandler) error
}

// Deliverer sends one notification. Satisfied by services.NotificationService.
type Deliverer interface {
	Notify(ctx context.Context, n models.OrderNotification) error
}

// NotificationConsumer drains the notification queue.
type NotificationConsumer struct {
	queue   Poller
	service Deliverer
	log     *zap.Logger
}

func NewNotificationConsumer(queue Poller, service Deliverer, log *zap.Logger) *NotificationConsumer {
	return &NotificationConsumer{queue: queue, service: service, log: log}
}

// Start blocks until ctx is cancelled.
func (c *NotificationConsumer) Start(ctx context.Context) {
	c.log.Info("notification consumer started")
	if err := c.queue.Poll(ctx, c.Handle); err != nil && !errors.Is(err, context.Canceled) {
		c.log.Error("notification consumer stopped", zap.Error(err))
		return
	}
	c.log.Info("notification consumer shutting down")
}

// snsEnvelope unwraps messages that reach the queue through an SNS topic.
type snsEnvelope struct {
	Type    string `json:"Type"`
	Message string `json:"Message"`
}

// Handle processes one queue message. Unparseable messages are dropped;
// delivery errors leave the message for redelivery.
func (c *NotificationConsumer) Handle(ctx context.Context, msg awspkg.Message) error {
	body := msg.Body
	var env snsEnvelope
	if err := json.Unmarshal([]byte(body), &env); err == nil && env.Type == "Notification" && env.Message != "" {
		body = env.Message
	}

	var n models.OrderNotification
	if err := json.Unmarshal([]byte(body), &n); err != nil {
		c.log.Error("failed to unmarshal notification", zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}
	if n.Type == "" || n.OrderID == "" {
		c.log.Error("notification missing fields",
			zap.String("message_id", msg.ID),
			zap.String("type", n.Type),
			zap.String("order_id", n.OrderID))
		return nil
	}

	if err := c.service.Notify(ctx, n); err != nil {
		c.log.Error("failed to process notification", zap.String("type", n.Type), zap.Error(err))
		return err
	}
	return nil
}
