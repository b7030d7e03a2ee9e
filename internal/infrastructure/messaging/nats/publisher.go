// Package nats implements the event publisher over NATS core.
//
// Subjects are the event type constants (fundflow.wallet.*,
// fundflow.transfer.*). Delivery is at-most-once: the use cases publish after
// the durable commit and log failures instead of failing the operation.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/Haleralex/fundflow/internal/application/ports"
	"github.com/Haleralex/fundflow/internal/domain/events"
)

// Compile-time check
var _ ports.EventPublisher = (*EventPublisher)(nil)

// Config holds NATS connection settings.
type Config struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultConfig returns the local-development defaults.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		Name:          "fundflow",
		MaxReconnects: 10,
		ReconnectWait: 2 * time.Second,
	}
}

// Connect establishes the NATS connection.
func Connect(cfg Config) (*nats.Conn, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return conn, nil
}

// envelope is the wire format for every published event.
type envelope struct {
	EventID     uuid.UUID   `json:"eventId"`
	EventType   string      `json:"eventType"`
	OccurredAt  time.Time   `json:"occurredAt"`
	AggregateID uuid.UUID   `json:"aggregateId"`
	Payload     interface{} `json:"payload"`
}

// EventPublisher implements ports.EventPublisher over a NATS connection.
type EventPublisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewEventPublisher creates a new EventPublisher.
func NewEventPublisher(conn *nats.Conn, logger *slog.Logger) *EventPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventPublisher{conn: conn, logger: logger}
}

// Publish publishes a single event on its type subject.
func (p *EventPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	payload, err := json.Marshal(envelope{
		EventID:     event.EventID(),
		EventType:   event.EventType(),
		OccurredAt:  event.OccurredAt(),
		AggregateID: event.AggregateID(),
		Payload:     event,
	})
	if err != nil {
		return fmt.Errorf("failed to serialize event %s: %w", event.EventType(), err)
	}

	if err := p.conn.Publish(event.EventType(), payload); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.EventType(), err)
	}

	p.logger.DebugContext(ctx, "event published",
		slog.String("event_type", event.EventType()),
		slog.String("aggregate_id", event.AggregateID().String()),
	)
	return nil
}

// PublishBatch publishes several events in order. The first failure aborts
// the batch; earlier events are already on the wire.
func (p *EventPublisher) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	for _, event := range batch {
		if err := p.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// Close drains and closes the connection.
func (p *EventPublisher) Close() {
	if p.conn != nil && !p.conn.IsClosed() {
		_ = p.conn.Drain()
	}
}
