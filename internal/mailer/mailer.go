// Package mailer sends transactional email. Sending never fails the caller:
// errors are logged and dropped.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

const sendTimeout = 10 * time.Second

type Notifier interface {
	SendOrderConfirmation(ctx context.Context, email string, orderID int64, total decimal.Decimal)
	SendWelcomeEmail(ctx context.Context, email, username string)
}

// EmailClient is a mail transport.
type EmailClient interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

type Mailer struct {
	client EmailClient
	from   string
	logger *slog.Logger
}

func New(client EmailClient, from string, logger *slog.Logger) *Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{client: client, from: from, logger: logger}
}

func (m *Mailer) SendOrderConfirmation(ctx context.Context, email string, orderID int64, total decimal.Decimal) {
	subject := fmt.Sprintf("Order Confirmation - Order #%d", orderID)
	body := fmt.Sprintf(
		"Thank you for your order!\n\nOrder ID: %d\nTotal: $%s\n\nWe will notify you when your order ships.",
		orderID, total.StringFixed(2))
	m.send(ctx, email, subject, body)
}

func (m *Mailer) SendWelcomeEmail(ctx context.Context, email, username string) {
	subject := "Welcome to our store!"
	body := fmt.Sprintf(
		"Hi %s,\n\nThanks for creating an account. Happy shopping!",
		username)
	m.send(ctx, email, subject, body)
}

func (m *Mailer) send(ctx context.Context, to, subject, body string) {
	// detached from the request so a finished response does not cancel the send
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()

	if err := m.client.Send(ctx, m.from, to, subject, body); err != nil {
		m.logger.ErrorContext(ctx, "failed to send email",
			slog.String("to", to),
			slog.String("subject", subject),
			slog.Any("error", err))
		return
	}
	m.logger.InfoContext(ctx, "email sent", slog.String("to", to), slog.String("subject", subject))
}
