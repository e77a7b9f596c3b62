package events

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/medqueue/backend/internal/domain/entities"
)

// fanout is the per-process subscriber registry behind both buses. Delivery
// never blocks: a subscriber whose buffer is full misses the event.
type fanout struct {
	mu     sync.RWMutex
	subs   map[string]map[chan *entities.HospitalEvent]struct{}
	buffer int
}

func newFanout(buffer int) *fanout {
	if buffer <= 0 {
		buffer = 100
	}
	return &fanout{
		subs:   make(map[string]map[chan *entities.HospitalEvent]struct{}),
		buffer: buffer,
	}
}

func (f *fanout) add(channel string) chan *entities.HospitalEvent {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.subs[channel] == nil {
		f.subs[channel] = make(map[chan *entities.HospitalEvent]struct{})
	}
	ch := make(chan *entities.HospitalEvent, f.buffer)
	f.subs[channel][ch] = struct{}{}
	return ch
}

// remove closes ch and reports whether it was the channel's last subscriber.
// Removing an unknown subscriber is a no-op.
func (f *fanout) remove(channel string, ch chan *entities.HospitalEvent) (last bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	set, ok := f.subs[channel]
	if !ok {
		return false
	}
	if _, ok := set[ch]; !ok {
		return false
	}
	delete(set, ch)
	close(ch)
	if len(set) == 0 {
		delete(f.subs, channel)
		return true
	}
	return false
}

func (f *fanout) deliver(channel string, event *entities.HospitalEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for ch := range f.subs[channel] {
		select {
		case ch <- event:
		default:
			log.Warn().Str("channel", channel).Str("event_id", event.ID).Msg("subscriber buffer full, dropping event")
		}
	}
}

func (f *fanout) count(channel string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[channel])
}

// closeChannel closes every subscriber of channel.
func (f *fanout) closeChannel(channel string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for ch := range f.subs[channel] {
		close(ch)
	}
	delete(f.subs, channel)
}

func (f *fanout) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for channel, set := range f.subs {
		for ch := range set {
			close(ch)
		}
		delete(f.subs, channel)
	}
}
