package mailer

import (
	"context"
	"log/slog"
)

// LogClient writes mail to the log instead of delivering it.
type LogClient struct {
	logger *slog.Logger
}

func NewLogClient(logger *slog.Logger) *LogClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogClient{logger: logger}
}

func (c *LogClient) Send(ctx context.Context, from, to, subject, body string) error {
	c.logger.InfoContext(ctx, "mail",
		slog.String("from", from),
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("body", body))
	return nil
}
