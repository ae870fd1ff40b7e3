package main

import (
	"context"
	"time"

	"github.com/aamamun24/FineMed-Server/common/logger"
	awspkg "github.com/aamamun24/FineMed-Server/pkg/aws"
	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// initLogger builds the process logger, teeing JSON lines to CloudWatch Logs
// when enabled. A CloudWatch failure falls back to console only.
func initLogger(ctx context.Context, cfg *Config, awsCfg sdkaws.Config) (*zap.Logger, error) {
	if !cfg.CloudWatchEnabled {
		return logger.Initialize(cfg.AppEnv)
	}

	sink, err := awspkg.NewCloudWatchLogsClient(ctx, awsCfg, "/finemed/server", "finemed-server")
	if err != nil {
		log, lerr := logger.Initialize(cfg.AppEnv)
		if lerr != nil {
			return nil, lerr
		}
		log.Warn("CloudWatch Logs unavailable, logging to console only", zap.Error(err))
		return log, nil
	}
	return logger.InitializeWithWriter(cfg.AppEnv, sink)
}

// requestTimeout bounds the context handed to services.
func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
