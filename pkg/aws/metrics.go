package aws

import (
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metric names.
const (
	MetricHTTPRequests = "HTTPRequests"
	MetricHTTPLatency  = "HTTPLatency"
	MetricHTTP4xx      = "HTTP4xxErrors"
	MetricHTTP5xx      = "HTTP5xxErrors"

	MetricOrdersCreated     = "OrdersCreated"
	MetricOrdersCancelled   = "OrdersCancelled"
	MetricOrdersFailed      = "OrdersFailed"
	MetricPaymentSucceeded  = "PaymentSucceeded"
	MetricPaymentFailed     = "PaymentFailed"
	MetricInventoryReserved = "InventoryReserved"
	MetricInventoryReleased = "InventoryReleased"
	MetricInventoryLow      = "InventoryLowStock"
	MetricNotificationsSent = "NotificationsSent"
	MetricCacheHits         = "CacheHits"
	MetricCacheMisses       = "CacheMisses"
)

type cloudwatchAPI interface {
	PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// MetricsClient publishes CloudWatch metrics. A nil or disabled client
// drops every data point, so callers never need to check.
type MetricsClient struct {
	api       cloudwatchAPI
	namespace string
	enabled   bool
}

func NewMetricsClient(cfg sdkaws.Config, namespace string, enabled bool) *MetricsClient {
	if namespace == "" {
		namespace = "FineMed"
	}
	return &MetricsClient{api: cloudwatch.NewFromConfig(cfg), namespace: namespace, enabled: enabled}
}

func (m *MetricsClient) IsEnabled() bool {
	return m != nil && m.enabled
}

// Put sends a single data point.
func (m *MetricsClient) Put(ctx context.Context, name string, value float64, unit types.StandardUnit, dims map[string]string) error {
	if !m.IsEnabled() {
		return nil
	}

	dimensions := make([]types.Dimension, 0, len(dims))
	for k, v := range dims {
		dimensions = append(dimensions, types.Dimension{Name: sdkaws.String(k), Value: sdkaws.String(v)})
	}

	_, err := m.api.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: sdkaws.String(m.namespace),
		MetricData: []types.MetricDatum{{
			MetricName: sdkaws.String(name),
			Value:      sdkaws.Float64(value),
			Unit:       unit,
			Timestamp:  sdkaws.Time(time.Now()),
			Dimensions: dimensions,
		}},
	})
	if err != nil {
		return fmt.Errorf("put metric %s: %w", name, err)
	}
	return nil
}

func (m *MetricsClient) Count(ctx context.Context, name string, dims map[string]string) error {
	return m.Put(ctx, name, 1, types.StandardUnitCount, dims)
}

// Latency records d in milliseconds.
func (m *MetricsClient) Latency(ctx context.Context, name string, d time.Duration, dims map[string]string) error {
	return m.Put(ctx, name, float64(d.Milliseconds()), types.StandardUnitMilliseconds, dims)
}

func (m *MetricsClient) Value(ctx context.Context, name string, v float64, dims map[string]string) error {
	return m.Put(ctx, name, v, types.StandardUnitNone, dims)
}

// CountAsync records a counter off the request path.
func (m *MetricsClient) CountAsync(name string, dims map[string]string) {
	if !m.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Count(ctx, name, dims)
	}()
}
