package events

import (
	"context"

	"github.com/swasthya/hms-backend/internal/domain/entities"
	"github.com/swasthya/hms-backend/internal/domain/providers"
)

// NoopEventBus drops every event. It is used when Redis is not configured.
type NoopEventBus struct{}

// NewNoopEventBus creates an event bus that publishes nowhere
func NewNoopEventBus() providers.EventBus {
	return NoopEventBus{}
}

// Publish discards the event
func (NoopEventBus) Publish(context.Context, string, *entities.PatientEvent) error { return nil }

// Subscribe returns a channel that is closed once ctx is done
func (NoopEventBus) Subscribe(ctx context.Context, _ string) (<-chan *entities.PatientEvent, error) {
	ch := make(chan *entities.PatientEvent)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

// Unsubscribe is a no-op
func (NoopEventBus) Unsubscribe(context.Context, string) error { return nil }

// Close is a no-op
func (NoopEventBus) Close() error { return nil }
