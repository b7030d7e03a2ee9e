package ports

import (
	"context"

	"github.com/Haleralex/fundflow/internal/domain/events"
)

// EventPublisher publishes domain events to interested consumers.
//
// Publishing is best-effort and happens after the durable commit: a publish
// failure is logged, never used to fail an already-committed operation
// (exact-once external notification is a non-goal).
type EventPublisher interface {
	// Publish publishes a single event.
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch publishes several events in order.
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}
