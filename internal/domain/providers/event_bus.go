package providers

import (
	"context"

	"github.com/swasthya/hms-backend/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to patient events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.PatientEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.PatientEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannelPatientUpdates is the channel carrying every patient change
const EventChannelPatientUpdates = "patients:updates"
