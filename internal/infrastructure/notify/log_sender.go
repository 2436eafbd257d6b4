package notify

import (
	"context"
	"log/slog"
)

// LogSender logs messages instead of delivering them. Bodies carry one-time
// codes, so they are only logged when verbose is set (local test mode).
type LogSender struct {
	logger  *slog.Logger
	verbose bool
}

func NewLogSender(logger *slog.Logger, verbose bool) *LogSender {
	return &LogSender{logger: logger, verbose: verbose}
}

func (s *LogSender) Deliver(_ context.Context, msg Message) error {
	attrs := []any{"to", msg.To, "subject", msg.Subject}
	if s.verbose {
		attrs = append(attrs, "body", msg.Body)
	}
	s.logger.Info("send notification", attrs...)
	return nil
}
