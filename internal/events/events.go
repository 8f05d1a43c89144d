// Package events publishes todo change notifications to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Kind names a todo change.
type Kind string

const (
	TodoCreated   Kind = "todo.created"
	TodoCompleted Kind = "todo.completed"
	TodoDeleted   Kind = "todo.deleted"
)

// TodoEvent is the payload written for every successful todo mutation.
type TodoEvent struct {
	ID         string    `json:"event_id"`
	Type       Kind      `json:"type"`
	UserID     int64     `json:"user_id"`
	TodoID     int64     `json:"todo_id"`
	Task       string    `json:"task,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewTodoEvent stamps an event with a fresh ID.
func NewTodoEvent(kind Kind, userID, todoID int64, task string, at time.Time) TodoEvent {
	return TodoEvent{
		ID:         uuid.NewString(),
		Type:       kind,
		UserID:     userID,
		TodoID:     todoID,
		Task:       task,
		OccurredAt: at.UTC(),
	}
}

// KafkaPublisher writes TodoEvents keyed by user ID so one user's events stay ordered.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewKafkaPublisher creates an async publisher for the given brokers and topic.
func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "events", "topic", topic)

	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Async:        true,
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("Todo event delivery failed", "count", len(messages), "error", err)
			}
		},
	}
	return &KafkaPublisher{writer: w, logger: logger}
}

// Publish enqueues the event. With an async writer, delivery errors surface in the log.
func (p *KafkaPublisher) Publish(ctx context.Context, ev TodoEvent) error {
	msg, err := encode(ev)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write todo event: %w", err)
	}
	return nil
}

// Close flushes pending messages.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func encode(ev TodoEvent) (kafka.Message, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal todo event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(ev.UserID, 10)),
		Value: payload,
		Time:  ev.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}, nil
}
