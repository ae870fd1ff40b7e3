package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aamamun24/FineMed-Server/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventPublisher emits order lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, evt models.OrderEvent) error
}

// KafkaPublisher is satisfied by kafka.Producer.
type KafkaPublisher interface {
	Publish(ctx context.Context, key string, value []byte, headers map[string]string) error
}

// TopicPublisher is satisfied by the SNS client.
type TopicPublisher interface {
	Publish(ctx context.Context, eventType string, message []byte) error
}

// FanoutPublisher sends each event to every configured sink. Either sink may
// be nil.
type FanoutPublisher struct {
	kafka KafkaPublisher
	topic TopicPublisher
	log   *zap.Logger
}

func NewFanoutPublisher(k KafkaPublisher, t TopicPublisher, log *zap.Logger) *FanoutPublisher {
	return &FanoutPublisher{kafka: k, topic: t, log: log}
}

func (p *FanoutPublisher) Publish(ctx context.Context, evt models.OrderEvent) error {
	if evt.EventID == "" {
		evt.EventID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	if evt.Source == "" {
		evt.Source = "finemed-server"
	}

	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	var errs []error
	if p.kafka != nil {
		if err := p.kafka.Publish(ctx, evt.OrderID, body, map[string]string{"eventType": evt.Type}); err != nil {
			errs = append(errs, err)
		}
	}
	if p.topic != nil {
		if err := p.topic.Publish(ctx, evt.Type, body); err != nil {
			errs = append(errs, fmt.Errorf("sns publish: %w", err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		p.log.Warn("order event not delivered to every sink",
			zap.String("event_type", evt.Type),
			zap.String("order_id", evt.OrderID),
			zap.Error(err))
		return err
	}
	return nil
}

// NoopPublisher drops events. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, models.OrderEvent) error { return nil }
