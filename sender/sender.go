package sender

import (
	"context"
	"time"
)

type SendResult struct {
	MessageID string
	SentAt    time.Time
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) (SendResult, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, msg string) (SendResult, error)
}

// LogSender stands in for a real provider in development. It only logs.
type LogSender struct {
	log func(channel, to, subject string)
}

func NewLogSender(log func(channel, to, subject string)) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) SendEmail(_ context.Context, to, subject, _ string) (SendResult, error) {
	s.log("email", to, subject)
	return SendResult{MessageID: "log-email", SentAt: time.Now()}, nil
}

func (s *LogSender) SendSMS(_ context.Context, to, _ string) (SendResult, error) {
	s.log("sms", to, "")
	return SendResult{MessageID: "log-sms", SentAt: time.Now()}, nil
}
