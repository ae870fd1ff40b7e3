package aws

import (
	"context"
	"errors"
	"testing"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (f *fakeCloudWatch) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestMetricsClient_DisabledAndNilAreNoops(t *testing.T) {
	var nilClient *MetricsClient
	assert.NoError(t, nilClient.Count(context.Background(), MetricOrdersCreated, nil))

	api := &fakeCloudWatch{}
	disabled := &MetricsClient{api: api, namespace: "FineMed"}
	assert.NoError(t, disabled.Count(context.Background(), MetricOrdersCreated, nil))
	assert.Empty(t, api.inputs)
}

func TestMetricsClient_Count(t *testing.T) {
	api := &fakeCloudWatch{}
	m := &MetricsClient{api: api, namespace: "FineMed", enabled: true}

	require.NoError(t, m.Count(context.Background(), MetricInventoryReserved, map[string]string{"ProductId": "p1"}))

	require.Len(t, api.inputs, 1)
	in := api.inputs[0]
	assert.Equal(t, "FineMed", sdkaws.ToString(in.Namespace))
	require.Len(t, in.MetricData, 1)
	assert.Equal(t, MetricInventoryReserved, sdkaws.ToString(in.MetricData[0].MetricName))
	assert.Equal(t, 1.0, sdkaws.ToFloat64(in.MetricData[0].Value))
	assert.Equal(t, "p1", sdkaws.ToString(in.MetricData[0].Dimensions[0].Value))
}

type fakeSQS struct {
	sent     []*sqs.SendMessageInput
	messages []sqstypes.Message
	deleted  []string
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.sent = append(f.sent, in)
	return &sqs.SendMessageOutput{}, nil
}

func (f *fakeSQS) ReceiveMessage(context.Context, *sqs.ReceiveMessageInput, ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	msgs := f.messages
	f.messages = nil
	return &sqs.ReceiveMessageOutput{Messages: msgs}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, sdkaws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func TestSQSClient_SendCarriesAttributes(t *testing.T) {
	api := &fakeSQS{}
	c := &SQSClient{api: api, queueURL: "http://queue", log: zap.NewNop()}

	require.NoError(t, c.Send(context.Background(), `{"a":1}`, map[string]string{"type": "order_created"}))

	require.Len(t, api.sent, 1)
	assert.Equal(t, "http://queue", sdkaws.ToString(api.sent[0].QueueUrl))
	assert.Equal(t, "order_created", sdkaws.ToString(api.sent[0].MessageAttributes["type"].StringValue))
}

func TestSQSClient_PollOnceDeletesOnlyHandled(t *testing.T) {
	api := &fakeSQS{messages: []sqstypes.Message{
		{MessageId: sdkaws.String("1"), Body: sdkaws.String("ok"), ReceiptHandle: sdkaws.String("r1")},
		{MessageId: sdkaws.String("2"), Body: sdkaws.String("bad"), ReceiptHandle: sdkaws.String("r2")},
		{MessageId: sdkaws.String("3"), ReceiptHandle: sdkaws.String("r3")},
	}}
	c := &SQSClient{api: api, queueURL: "q", log: zap.NewNop()}

	var seen []string
	err := c.PollOnce(context.Background(), func(_ context.Context, m Message) error {
		seen = append(seen, m.Body)
		if m.Body == "bad" {
			return errors.New("nope")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"ok", "bad"}, seen)
	assert.Equal(t, []string{"r1"}, api.deleted)
}

type fakeSNS struct{ in *sns.PublishInput }

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.in = in
	return &sns.PublishOutput{}, nil
}

func TestSNSClient_Publish(t *testing.T) {
	api := &fakeSNS{}
	c := &SNSClient{api: api, topicArn: "arn:aws:sns:us-east-1:000000000000:orders"}

	require.NoError(t, c.Publish(context.Background(), "order_created", []byte(`{}`)))
	assert.Equal(t, "order_created", sdkaws.ToString(api.in.MessageAttributes["eventType"].StringValue))

	empty := &SNSClient{api: api}
	assert.Error(t, empty.Publish(context.Background(), "x", nil))
}

type fakeSecrets struct{ calls int }

func (f *fakeSecrets) GetSecretValue(context.Context, *secretsmanager.GetSecretValueInput, ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	return &secretsmanager.GetSecretValueOutput{SecretString: sdkaws.String(`{"username":"fm","port":"5432"}`)}, nil
}

func TestSecretsClient_GetJSONCaches(t *testing.T) {
	api := &fakeSecrets{}
	s := &SecretsClient{api: api, cache: map[string]string{}}

	var creds struct {
		Username string `json:"username"`
		Port     string `json:"port"`
	}
	require.NoError(t, s.GetJSON(context.Background(), "finemed/DB_CREDENTIALS", &creds))
	require.NoError(t, s.GetJSON(context.Background(), "finemed/DB_CREDENTIALS", &creds))

	assert.Equal(t, "fm", creds.Username)
	assert.Equal(t, 1, api.calls)
}
