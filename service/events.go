package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/AnTengye/contractscore/config"
)

// Lifecycle event types
const (
	EventProcessing = "contract.processing"
	EventCompleted  = "contract.completed"
	EventFailed     = "contract.failed"
)

// Event announces a contract status change to downstream consumers.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	ContractID string    `json:"contract_id"`
	Status     string    `json:"status"`
	Score      *float64  `json:"confidence_score,omitempty"`
	Error      string    `json:"error_message,omitempty"`
	Time       time.Time `json:"time"`
}

func NewEvent(eventType, contractID, status string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		ContractID: contractID,
		Status:     status,
		Time:       time.Now().UTC(),
	}
}

// EventPublisher delivers lifecycle events. Publishing is best effort:
// callers log failures and carry on.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// OpenPublisher builds the EventPublisher selected by cfg.Driver.
func OpenPublisher(cfg config.EventsConfig, logger *slog.Logger) (EventPublisher, error) {
	switch cfg.Driver {
	case "", "none":
		return NoopPublisher{}, nil
	case "log":
		return NewLogPublisher(logger), nil
	case "kafka":
		return NewKafkaPublisher(cfg.Brokers, cfg.Topic)
	}
	return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close() error                         { return nil }

// LogPublisher writes events to the application log and keeps the most
// recent ones in memory.
type LogPublisher struct {
	logger *slog.Logger

	mu     sync.Mutex
	events []Event
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger.With("component", "events")}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	p.logger.InfoContext(ctx, "contract event",
		"event_id", event.ID,
		"type", event.Type,
		"contract_id", event.ContractID,
		"status", event.Status,
	)
	p.mu.Lock()
	p.events = append(p.events, event)
	if len(p.events) > 100 {
		p.events = p.events[len(p.events)-100:]
	}
	p.mu.Unlock()
	return nil
}

// Events returns a copy of the retained events, oldest first.
func (p *LogPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

func (p *LogPublisher) Close() error { return nil }

// KafkaPublisher writes events as JSON to a single topic, keyed by contract
// id so one contract's events stay ordered within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka publisher requires a topic")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		topic: topic,
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.ContractID),
		Value: payload,
		Time:  event.Time,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
