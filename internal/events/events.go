// Package events publishes domain events after their transaction commits.
// A failed publish never undoes the state change that produced the event.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"good-food/internal/domain"
)

type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
	Close() error
}

func New(eventType, aggregateID string, payload any, at time.Time) domain.Event {
	return domain.Event{
		ID:          uuid.NewString(),
		Type:        eventType,
		AggregateID: aggregateID,
		OccurredAt:  at,
		Payload:     payload,
	}
}

type Nop struct{}

func (Nop) Publish(context.Context, domain.Event) error { return nil }
func (Nop) Close() error                                { return nil }
