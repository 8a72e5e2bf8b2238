package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	r "github.com/fjod/storefront/internal/repository"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
)

func newEvent(id int64, orderID string) *r.OutboxEvent {
	return &r.OutboxEvent{
		ID:          id,
		AggregateID: orderID,
		EventType:   "order.placed",
		Payload:     json.RawMessage(fmt.Sprintf(`{"order_id":%s}`, orderID)),
		CreatedAt:   time.Now(),
	}
}

func TestProcessUnpublishedEvents_PublishesAndMarks(t *testing.T) {
	repo := &MockOutbox{Events: []*r.OutboxEvent{newEvent(1, "10"), newEvent(2, "11")}}
	writer := &MockWriter{}
	poller := NewOutboxPoller(repo, writer, nil)

	n := poller.processUnpublishedEvents(context.Background())

	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 2}, repo.ProcessedIDs)
	require.Len(t, writer.Messages, 2)
	assert.Equal(t, "10", string(writer.Messages[0].Key))
	assert.Equal(t, "event_type", writer.Messages[0].Headers[0].Key)
	assert.Equal(t, "order.placed", string(writer.Messages[0].Headers[0].Value))

	// nothing left on the next tick
	assert.Equal(t, 0, poller.processUnpublishedEvents(context.Background()))
}

func TestProcessUnpublishedEvents_PublishFailureLeavesEventPending(t *testing.T) {
	repo := &MockOutbox{Events: []*r.OutboxEvent{newEvent(1, "10"), newEvent(2, "11")}}
	writer := &MockWriter{FailKeys: map[string]bool{"10": true}}
	poller := NewOutboxPoller(repo, writer, nil)

	n := poller.processUnpublishedEvents(context.Background())

	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{2}, repo.ProcessedIDs)
	assert.False(t, repo.Events[0].ProcessedAt.Valid)

	// retried once the broker recovers
	writer.FailKeys = nil
	assert.Equal(t, 1, poller.processUnpublishedEvents(context.Background()))
	assert.Equal(t, []int64{2, 1}, repo.ProcessedIDs)
}

func TestProcessUnpublishedEvents_RepositoryError(t *testing.T) {
	repo := &MockOutbox{GetErr: errors.New("database connection error")}
	writer := &MockWriter{}
	poller := NewOutboxPoller(repo, writer, nil)

	assert.Equal(t, 0, poller.processUnpublishedEvents(context.Background()))
	assert.Empty(t, writer.Messages)
}

func TestProcessUnpublishedEvents_MarkError(t *testing.T) {
	repo := &MockOutbox{Events: []*r.OutboxEvent{newEvent(1, "10")}, MarkErr: errors.New("deadlock")}
	writer := &MockWriter{}
	poller := NewOutboxPoller(repo, writer, nil)

	assert.Equal(t, 0, poller.processUnpublishedEvents(context.Background()))
	assert.Len(t, writer.Messages, 1)
}

func TestRun_StopsOnCancel(t *testing.T) {
	repo := &MockOutbox{Events: []*r.OutboxEvent{newEvent(1, "10")}}
	writer := &MockWriter{}
	poller := NewOutboxPoller(repo, writer, nil)
	poller.eventTick = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		writer.mu.Lock()
		defer writer.mu.Unlock()
		return len(writer.Messages) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}

	require.NoError(t, poller.Close())
	assert.True(t, writer.Closed)
}

func setupKafka(t *testing.T) string {
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	})

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "broker address should not be empty")
	return brokers[0]
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestOutboxPoller_PublishesEventsToKafka(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping kafka container test in short mode")
	}
	brokerAddr := setupKafka(t)
	createTopic(t, brokerAddr, DefaultTopic)

	repo := &MockOutbox{Events: []*r.OutboxEvent{newEvent(1, "42")}}
	writer := NewKafkaWriter(DefaultTopic, brokerAddr)
	poller := NewOutboxPoller(repo, writer, nil)
	defer poller.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	go poller.Run(ctx)

	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers:  []string{brokerAddr},
		Topic:    DefaultTopic,
		GroupID:  "test-consumer",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "42", string(msg.Key))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.EqualValues(t, 42, payload["order_id"])

	assert.Eventually(t, func() bool { return len(repo.Processed()) == 1 }, 10*time.Second, 100*time.Millisecond)
}
