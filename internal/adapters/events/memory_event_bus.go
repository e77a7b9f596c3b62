package events

import (
	"context"
	"errors"
	"sync"

	"github.com/medqueue/backend/internal/domain/entities"
	"github.com/medqueue/backend/internal/domain/providers"
)

// ErrBusClosed is returned by operations on a closed bus.
var ErrBusClosed = errors.New("event bus closed")

// MemoryEventBus is the single-process EventBus.
type MemoryEventBus struct {
	local *fanout

	mu     sync.RWMutex
	closed bool
}

// NewMemoryEventBus creates an in-process event bus
func NewMemoryEventBus(bufferSize int) *MemoryEventBus {
	return &MemoryEventBus{local: newFanout(bufferSize)}
}

var _ providers.EventBus = (*MemoryEventBus)(nil)

// Publish delivers event to every current subscriber of channel
func (b *MemoryEventBus) Publish(_ context.Context, channel string, event *entities.HospitalEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}
	b.local.deliver(channel, event)
	return nil
}

// Subscribe registers a subscriber that is removed when ctx is done
func (b *MemoryEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.HospitalEvent, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrBusClosed
	}
	ch := b.local.add(channel)
	go func() {
		<-ctx.Done()
		b.local.remove(channel, ch)
	}()
	return ch, nil
}

// Unsubscribe closes every subscriber of channel
func (b *MemoryEventBus) Unsubscribe(_ context.Context, channel string) error {
	b.local.closeChannel(channel)
	return nil
}

// Close closes all subscriptions
func (b *MemoryEventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.closed = true
		b.local.closeAll()
	}
	return nil
}
