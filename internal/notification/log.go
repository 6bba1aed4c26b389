package notification

import (
	"context"
	"log/slog"
)

// LogNotifier stands in for SMTP in development. It records that a message
// was dispatched but never logs the body, which carries a live token.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, to, subject, htmlBody string) error {
	n.logger.Info("email not sent, smtp not configured", "to", to, "subject", subject, "bytes", len(htmlBody))
	return nil
}
