package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/medqueue/backend/internal/domain/entities"
	"github.com/medqueue/backend/internal/domain/providers"
)

// RedisEventBus implements EventBus over Redis Pub/Sub so every API replica
// relays broadcasts to its own connected clients. One Redis subscription is
// held per channel while the channel has local subscribers.
type RedisEventBus struct {
	client redis.UniversalClient
	local  *fanout

	mu     sync.Mutex
	pubsub map[string]*redis.PubSub
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRedisEventBus creates a new Redis-based event bus
func NewRedisEventBus(client redis.UniversalClient) *RedisEventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client: client,
		local:  newFanout(100),
		pubsub: make(map[string]*redis.PubSub),
		ctx:    ctx,
		cancel: cancel,
	}
}

var _ providers.EventBus = (*RedisEventBus)(nil)

// Publish sends event to every replica subscribed to channel
func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.HospitalEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Debug().Str("channel", channel).Str("event_id", event.ID).Str("hospital_id", event.HospitalID).Msg("published hospital event")
	return nil
}

// Subscribe registers a local subscriber that is removed when ctx is done.
// The Redis subscription is confirmed before returning, so events published
// afterwards are delivered.
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.HospitalEvent, error) {
	b.mu.Lock()
	if b.ctx.Err() != nil {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	if _, ok := b.pubsub[channel]; !ok {
		ps := b.client.Subscribe(b.ctx, channel)
		if _, err := ps.Receive(ctx); err != nil {
			b.mu.Unlock()
			_ = ps.Close()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
		}
		b.pubsub[channel] = ps
		go b.relay(channel, ps)
	}
	ch := b.local.add(channel)
	b.mu.Unlock()

	log.Info().Str("channel", channel).Int("subscribers", b.local.count(channel)).Msg("subscribed to channel")

	go func() {
		<-ctx.Done()
		b.remove(channel, ch)
	}()
	return ch, nil
}

// relay decodes Redis messages for channel and hands them to local
// subscribers until the subscription ends.
func (b *RedisEventBus) relay(channel string, ps *redis.PubSub) {
	defer b.drop(channel, ps)

	for msg := range ps.Channel() {
		var event entities.HospitalEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			log.Warn().Err(err).Str("channel", channel).Msg("failed to unmarshal hospital event")
			continue
		}
		b.local.deliver(channel, &event)
	}
}

func (b *RedisEventBus) remove(channel string, ch chan *entities.HospitalEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.local.remove(channel, ch) {
		return
	}
	if ps, ok := b.pubsub[channel]; ok {
		delete(b.pubsub, channel)
		_ = ps.Close()
		log.Info().Str("channel", channel).Msg("closed subscription")
	}
}

// drop runs when a relay ends. Local subscribers are closed only if ps is
// still the channel's live subscription.
func (b *RedisEventBus) drop(channel string, ps *redis.PubSub) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pubsub[channel] != ps {
		return
	}
	delete(b.pubsub, channel)
	_ = ps.Close()
	b.local.closeChannel(channel)
}

// Unsubscribe closes the Redis subscription and every local subscriber of channel
func (b *RedisEventBus) Unsubscribe(_ context.Context, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.local.closeChannel(channel)
	ps, ok := b.pubsub[channel]
	if !ok {
		return nil
	}
	delete(b.pubsub, channel)
	if err := ps.Close(); err != nil {
		return fmt.Errorf("failed to close subscription %s: %w", channel, err)
	}
	log.Info().Str("channel", channel).Msg("unsubscribed from channel")
	return nil
}

// Close closes the event bus and all subscriptions
func (b *RedisEventBus) Close() error {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for channel, ps := range b.pubsub {
		delete(b.pubsub, channel)
		if err := ps.Close(); err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", channel, err))
		}
	}
	b.local.closeAll()

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("errors closing event bus: %w", err)
	}
	log.Info().Msg("event bus closed")
	return nil
}
