package publisher

import (
	"context"
	"sync"

	r "github.com/fjod/storefront/internal/repository"
	"github.com/segmentio/kafka-go"
)

// MockOutbox implements r.OutboxRepoInterface for testing
type MockOutbox struct {
	mu           sync.Mutex
	Events       []*r.OutboxEvent
	GetErr       error
	MarkErr      error
	ProcessedIDs []int64
}

func (m *MockOutbox) Add(context.Context, string, string, []byte) error {
	return nil
}

func (m *MockOutbox) GetUnprocessed(context.Context, int) ([]*r.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	var pending []*r.OutboxEvent
	for _, e := range m.Events {
		if !e.ProcessedAt.Valid {
			pending = append(pending, e)
		}
	}
	return pending, nil
}

func (m *MockOutbox) MarkProcessed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkErr != nil {
		return m.MarkErr
	}
	for _, e := range m.Events {
		if e.ID == id {
			e.ProcessedAt.Valid = true
		}
	}
	m.ProcessedIDs = append(m.ProcessedIDs, id)
	return nil
}

func (m *MockOutbox) Processed() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.ProcessedIDs...)
}

// MockWriter captures messages instead of sending them to Kafka
type MockWriter struct {
	mu       sync.Mutex
	Messages []kafka.Message
	FailKeys map[string]bool
	Err      error
	Closed   bool
}

func (w *MockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, m := range msgs {
		if w.Err != nil || w.FailKeys[string(m.Key)] {
			return w.errOr()
		}
		w.Messages = append(w.Messages, m)
	}
	return nil
}

func (w *MockWriter) errOr() error {
	if w.Err != nil {
		return w.Err
	}
	return kafka.LeaderNotAvailable
}

func (w *MockWriter) Close() error {
	w.Closed = true
	return nil
}
