package providers

import (
	"context"

	"github.com/medqueue/backend/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to hospital events
type EventBus interface {
	// Publish publishes an event to all subscribers of channel
	Publish(ctx context.Context, channel string, event *entities.HospitalEvent) error

	// Subscribe returns a stream of events on channel until ctx is done
	Subscribe(ctx context.Context, channel string) (<-chan *entities.HospitalEvent, error)

	// Unsubscribe drops every subscriber of channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

// EventChannelHospitalUpdates carries every post-mutation hospital state
const EventChannelHospitalUpdates = "hospital:updates"
