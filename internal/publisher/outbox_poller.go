// Package publisher relays committed outbox events to Kafka.
package publisher

import (
	"context"
	"log/slog"
	"time"

	r "github.com/fjod/storefront/internal/repository"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultTopic = "storefront.orders"
	batchSize    = 100
)

// MessageWriter is the part of *kafka.Writer the poller uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type OutboxPoller struct {
	timeout   time.Duration
	eventTick time.Duration
	repo      r.OutboxRepoInterface
	writer    MessageWriter
	logger    *slog.Logger
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
}

func NewOutboxPoller(repo r.OutboxRepoInterface, writer MessageWriter, logger *slog.Logger) *OutboxPoller {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutboxPoller{
		timeout:   5 * time.Second,
		eventTick: time.Second,
		repo:      repo,
		writer:    writer,
		logger:    logger,
	}
}

// Run polls until ctx is cancelled.
func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	defer eventTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Close flushes and closes the writer.
func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

// processUnpublishedEvents publishes each pending event and marks it processed.
// A failed publish leaves the event for the next tick, so delivery is at least once.
func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	events, err := p.repo.GetUnprocessed(ctx, batchSize)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to fetch outbox events", slog.Any("error", err))
		return 0
	}

	published := 0
	for _, event := range events {
		if errPublish := p.publish(ctx, event); errPublish != nil {
			p.logger.ErrorContext(ctx, "failed to publish outbox event",
				slog.Int64("event_id", event.ID),
				slog.Any("error", errPublish))
			continue
		}

		if errMark := p.repo.MarkProcessed(ctx, event.ID); errMark != nil {
			p.logger.ErrorContext(ctx, "failed to mark outbox event processed",
				slog.Int64("event_id", event.ID),
				slog.Any("error", errMark))
			continue
		}
		published++
	}
	return published
}

func (p *OutboxPoller) publish(ctx context.Context, event *r.OutboxEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order id keeps one order's events ordered
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}
