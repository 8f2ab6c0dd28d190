package mail

import (
	"context"
	"log/slog"
)

// Transport delivers a rendered message. Implementations honour ctx cancellation.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// LoggingTransport only logs messages. It is the default for local runs.
type LoggingTransport struct {
	logger *slog.Logger
}

func NewLoggingTransport(logger *slog.Logger) *LoggingTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingTransport{logger: logger}
}

func (t *LoggingTransport) Send(ctx context.Context, msg Message) error {
	t.logger.InfoContext(ctx, "mail sent",
		"module", "mail.log_transport",
		"layer", "adapter",
		"operation", "send_mail",
		"outcome", "success",
		"template", string(msg.Kind),
		"to", msg.To,
		"subject", msg.Subject,
		"html_bytes", len(msg.HTML),
	)
	return nil
}
