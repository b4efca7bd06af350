// Package messaging is the outbound notification channel. The WhatsApp
// Business integration lives in the gateway service; this module ships a
// logging sender so escalation notifications are visible when prahari runs
// standalone.
package messaging

import (
	"context"

	"go.uber.org/zap"
)

// Sender delivers a short text message to a phone number
type Sender interface {
	SendText(ctx context.Context, phone, text string) error
}

// LogSender writes every message to the log instead of a wire. It stands in
// for the gateway in CLI runs and tests.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a sender that only logs
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// SendText logs the message and reports success
func (s *LogSender) SendText(ctx context.Context, phone, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("outbound message",
		zap.String("to", phone),
		zap.Int("length", len(text)))
	s.logger.Debug("outbound message body", zap.String("text", text))
	return nil
}
