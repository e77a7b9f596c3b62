package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/medqueue/backend/internal/domain/entities"
	"github.com/medqueue/backend/internal/domain/providers"
	"github.com/medqueue/backend/internal/domain/repositories"
	apperrors "github.com/medqueue/backend/pkg/errors"
)

// Broadcaster pushes a post-mutation hospital state to connected clients.
type Broadcaster interface {
	Broadcast(ctx context.Context, hospital *entities.Hospital) error
}

// Message is the realtime envelope exchanged with clients.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// HospitalUpdate is the payload of a hospital-update message.
type HospitalUpdate struct {
	HospitalID string             `json:"hospitalId"`
	Data       *entities.Hospital `json:"data"`
}

// Subscriber is one connected realtime client.
type Subscriber struct {
	ID string

	send      chan Message
	mu        sync.Mutex
	interests map[string]struct{}
}

// Messages returns the outbound stream for the client. It is closed on Disconnect.
func (s *Subscriber) Messages() <-chan Message {
	return s.send
}

// Interested reports whether the client has subscribed to hospitalID.
func (s *Subscriber) Interested(hospitalID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.interests[hospitalID]
	return ok
}

// RealtimeHub tracks connected clients and fans hospital updates out to them.
// Updates travel through the event bus so that, with the Redis bus, every
// replica delivers them to its own clients.
type RealtimeHub struct {
	store      repositories.HospitalRepository
	bus        providers.EventBus
	bufferSize int

	mu      sync.RWMutex
	clients map[string]*Subscriber
}

// NewRealtimeHub creates a hub. bufferSize bounds each client's outbound queue.
func NewRealtimeHub(store repositories.HospitalRepository, bus providers.EventBus, bufferSize int) *RealtimeHub {
	if bufferSize <= 0 {
		bufferSize = 32
	}
	return &RealtimeHub{
		store:      store,
		bus:        bus,
		bufferSize: bufferSize,
		clients:    make(map[string]*Subscriber),
	}
}

// Connect registers a new client.
func (h *RealtimeHub) Connect() *Subscriber {
	sub := &Subscriber{
		ID:        uuid.NewString(),
		send:      make(chan Message, h.bufferSize),
		interests: make(map[string]struct{}),
	}

	h.mu.Lock()
	h.clients[sub.ID] = sub
	h.mu.Unlock()

	log.Debug().Str("client_id", sub.ID).Msg("realtime client connected")
	return sub
}

// Disconnect removes the client and closes its stream. Safe to call twice.
func (h *RealtimeHub) Disconnect(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[sub.ID]; !ok {
		return
	}
	delete(h.clients, sub.ID)
	close(sub.send)
	log.Debug().Str("client_id", sub.ID).Msg("realtime client disconnected")
}

// Subscribe records interest in hospitalID and answers with a hospital-data
// snapshot. Unknown hospitals are ignored without error and leave no
// interest behind; updates are broadcast globally, so such a client still
// receives them over the WebSocket channel.
func (h *RealtimeHub) Subscribe(ctx context.Context, sub *Subscriber, hospitalID string) error {
	hospital, err := h.store.Get(ctx, hospitalID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil
		}
		return err
	}

	sub.mu.Lock()
	sub.interests[hospitalID] = struct{}{}
	sub.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[sub.ID]; ok {
		h.deliver(sub, Message{Event: string(entities.HospitalEventSnapshot), Data: hospital})
	}
	return nil
}

// Unsubscribe clears every interest the client recorded.
func (h *RealtimeHub) Unsubscribe(sub *Subscriber) {
	sub.mu.Lock()
	clear(sub.interests)
	sub.mu.Unlock()
}

// Broadcast publishes hospital on the global updates channel.
func (h *RealtimeHub) Broadcast(ctx context.Context, hospital *entities.Hospital) error {
	if err := h.bus.Publish(ctx, providers.EventChannelHospitalUpdates, entities.NewHospitalEvent(hospital)); err != nil {
		return fmt.Errorf("failed to publish hospital update: %w", err)
	}
	return nil
}

// Start subscribes to the updates channel and pumps events to clients until
// ctx is done. The subscription is live when Start returns.
func (h *RealtimeHub) Start(ctx context.Context) error {
	events, err := h.bus.Subscribe(ctx, providers.EventChannelHospitalUpdates)
	if err != nil {
		return fmt.Errorf("failed to subscribe to hospital updates: %w", err)
	}

	go h.pump(ctx, events)
	log.Info().Msg("realtime hub started")
	return nil
}

func (h *RealtimeHub) pump(ctx context.Context, events <-chan *entities.HospitalEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				log.Warn().Msg("hospital update stream closed")
				return
			}
			if event == nil || event.Hospital == nil {
				continue
			}
			h.fanOut(Message{
				Event: string(entities.HospitalEventUpdate),
				Data:  HospitalUpdate{HospitalID: event.HospitalID, Data: event.Hospital},
			})
		}
	}
}

func (h *RealtimeHub) fanOut(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.clients {
		h.deliver(sub, msg)
	}
}

// deliver never blocks; a client whose buffer is full misses the message.
// Callers hold h.mu.
func (h *RealtimeHub) deliver(sub *Subscriber, msg Message) {
	select {
	case sub.send <- msg:
	default:
		log.Debug().Str("client_id", sub.ID).Str("event", msg.Event).Msg("dropping message for slow client")
	}
}

// ClientCount returns the number of connected clients.
func (h *RealtimeHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
