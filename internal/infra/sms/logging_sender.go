package sms

import (
	"context"

	"go.uber.org/zap"

	"github.com/mallkit/passport/internal/core/port"
	"github.com/mallkit/passport/internal/infra/logger"
)

// LoggingSender records code dispatches in the log instead of calling a
// gateway. It stands in for a real SMS integration in environments
// without one.
type LoggingSender struct {
	log *zap.Logger
}

// NewLoggingSender constructs the sender.
func NewLoggingSender(log *zap.Logger) *LoggingSender {
	if log == nil {
		log = zap.NewNop()
	}
	return &LoggingSender{log: log}
}

// SendCode logs the dispatch with the identifier masked. The code
// itself is never logged.
func (s *LoggingSender) SendCode(ctx context.Context, identifier, code string) error {
	s.log.Info("verification code dispatched",
		zap.String("identifier", logger.MaskIdentifier(identifier)),
		zap.Int("code_length", len(code)))
	return nil
}

var _ port.NotificationSender = (*LoggingSender)(nil)
