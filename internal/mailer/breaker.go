package mailer

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerClient stops calling the wrapped transport for a while after
// repeated failures. Calls made while open fail with gobreaker.ErrOpenState.
type BreakerClient struct {
	next EmailClient
	cb   *gobreaker.CircuitBreaker[struct{}]
}

func NewBreakerClient(next EmailClient, logger *slog.Logger) *BreakerClient {
	if logger == nil {
		logger = slog.Default()
	}
	settings := gobreaker.Settings{
		Name:        "mail",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}
	return &BreakerClient{next: next, cb: gobreaker.NewCircuitBreaker[struct{}](settings)}
}

func (b *BreakerClient) Send(ctx context.Context, from, to, subject, body string) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Send(ctx, from, to, subject, body)
	})
	return err
}
