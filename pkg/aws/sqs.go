package aws

import (
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"
)

type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Message is a received queue message.
type Message struct {
	ID         string
	Body       string
	Attributes map[string]string
}

// MessageHandler processes one message. A returned error leaves the message
// on the queue for redelivery after the visibility timeout.
type MessageHandler func(ctx context.Context, msg Message) error

// SQSClient sends to and polls a single queue.
type SQSClient struct {
	api      sqsAPI
	queueURL string
	log      *zap.Logger
}

func NewSQSClient(cfg sdkaws.Config, queueURL string, log *zap.Logger) *SQSClient {
	return &SQSClient{api: sqs.NewFromConfig(cfg), queueURL: queueURL, log: log}
}

// Send enqueues body with string attributes.
func (c *SQSClient) Send(ctx context.Context, body string, attrs map[string]string) error {
	in := &sqs.SendMessageInput{
		QueueUrl:    sdkaws.String(c.queueURL),
		MessageBody: sdkaws.String(body),
	}
	if len(attrs) > 0 {
		in.MessageAttributes = make(map[string]types.MessageAttributeValue, len(attrs))
		for k, v := range attrs {
			in.MessageAttributes[k] = types.MessageAttributeValue{
				DataType:    sdkaws.String("String"),
				StringValue: sdkaws.String(v),
			}
		}
	}
	if _, err := c.api.SendMessage(ctx, in); err != nil {
		return fmt.Errorf("sqs send: %w", err)
	}
	return nil
}

// Poll long-polls the queue until ctx is cancelled.
func (c *SQSClient) Poll(ctx context.Context, handler MessageHandler) error {
	c.log.Info("sqs polling started", zap.String("queue", c.queueURL))
	for {
		select {
		case <-ctx.Done():
			c.log.Info("sqs polling stopped", zap.String("queue", c.queueURL))
			return ctx.Err()
		default:
		}
		if err := c.PollOnce(ctx, handler); err != nil && ctx.Err() == nil {
			c.log.Warn("sqs poll failed", zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second):
			}
		}
	}
}

// PollOnce receives one batch and deletes every message handled without error.
func (c *SQSClient) PollOnce(ctx context.Context, handler MessageHandler) error {
	out, err := c.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              sdkaws.String(c.queueURL),
		MaxNumberOfMessages:   10,
		WaitTimeSeconds:       20,
		VisibilityTimeout:     30,
		MessageAttributeNames: []string{"All"},
	})
	if err != nil {
		return fmt.Errorf("sqs receive: %w", err)
	}

	for _, m := range out.Messages {
		if m.Body == nil {
			continue
		}
		msg := Message{
			ID:         sdkaws.ToString(m.MessageId),
			Body:       *m.Body,
			Attributes: make(map[string]string, len(m.MessageAttributes)),
		}
		for k, v := range m.MessageAttributes {
			msg.Attributes[k] = sdkaws.ToString(v.StringValue)
		}

		if err := handler(ctx, msg); err != nil {
			c.log.Warn("sqs message handling failed", zap.String("message_id", msg.ID), zap.Error(err))
			continue
		}
		if _, err := c.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      sdkaws.String(c.queueURL),
			ReceiptHandle: m.ReceiptHandle,
		}); err != nil {
			c.log.Warn("sqs delete failed", zap.String("message_id", msg.ID), zap.Error(err))
		}
	}
	return nil
}
