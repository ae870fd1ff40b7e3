package middleware

import (
	"context"
	"strconv"
	"time"

	awspkg "github.com/aamamun24/FineMed-Server/pkg/aws"
	"github.com/gin-gonic/gin"
)

// MetricsMiddleware records request count, latency and error class per route.
func MetricsMiddleware(metrics *awspkg.MetricsClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !metrics.IsEnabled() {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		dims := map[string]string{
			"Method": c.Request.Method,
			"Route":  route,
			"Status": statusClass(status),
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			_ = metrics.Count(ctx, awspkg.MetricHTTPRequests, dims)
			_ = metrics.Latency(ctx, awspkg.MetricHTTPLatency, elapsed, dims)
			switch {
			case status >= 500:
				_ = metrics.Count(ctx, awspkg.MetricHTTP5xx, dims)
			case status >= 400:
				_ = metrics.Count(ctx, awspkg.MetricHTTP4xx, dims)
			}
		}()
	}
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
