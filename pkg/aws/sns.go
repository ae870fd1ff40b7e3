package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

type snsAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSClient publishes order events to a single topic.
type SNSClient struct {
	api      snsAPI
	topicArn string
}

func NewSNSClient(cfg sdkaws.Config, topicArn string) *SNSClient {
	return &SNSClient{api: sns.NewFromConfig(cfg), topicArn: topicArn}
}

// Publish sends message with eventType as a filterable attribute.
func (s *SNSClient) Publish(ctx context.Context, eventType string, message []byte) error {
	if s.topicArn == "" {
		return fmt.Errorf("sns: empty topic arn")
	}
	_, err := s.api.Publish(ctx, &sns.PublishInput{
		TopicArn: sdkaws.String(s.topicArn),
		Message:  sdkaws.String(string(message)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"eventType": {DataType: sdkaws.String("String"), StringValue: sdkaws.String(eventType)},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish to %s: %w", s.topicArn, err)
	}
	return nil
}
