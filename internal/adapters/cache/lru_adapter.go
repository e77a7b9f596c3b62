package cache

import (
	"context"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/medqueue/backend/internal/domain/providers"
)

// LRUAdapter is the in-process CacheProvider used when Redis is disabled.
// Every entry shares the adapter TTL; per-call expirations shorter than that
// are honoured by storing the deadline alongside the value.
type LRUAdapter struct {
	cache *expirable.LRU[string, lruEntry]
}

type lruEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewLRUAdapter creates an LRU cache holding at most size entries for at most ttl.
func NewLRUAdapter(size int, ttl time.Duration) *LRUAdapter {
	return &LRUAdapter{cache: expirable.NewLRU[string, lruEntry](size, nil, ttl)}
}

var _ providers.CacheProvider = (*LRUAdapter)(nil)

func (a *LRUAdapter) lookup(key string) (lruEntry, bool) {
	entry, ok := a.cache.Get(key)
	if !ok {
		return lruEntry{}, false
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		a.cache.Remove(key)
		return lruEntry{}, false
	}
	return entry, true
}

// Get retrieves a value from cache
func (a *LRUAdapter) Get(_ context.Context, key string) ([]byte, error) {
	entry, ok := a.lookup(key)
	if !ok {
		return nil, providers.ErrCacheMiss
	}
	return slices.Clone(entry.value), nil
}

// Set stores a value in cache with expiration
func (a *LRUAdapter) Set(_ context.Context, key string, value []byte, expirationSeconds int) error {
	entry := lruEntry{value: slices.Clone(value)}
	if expirationSeconds > 0 {
		entry.expiresAt = time.Now().Add(time.Duration(expirationSeconds) * time.Second)
	}
	a.cache.Add(key, entry)
	return nil
}

// Delete removes a value from cache
func (a *LRUAdapter) Delete(_ context.Context, key string) error {
	a.cache.Remove(key)
	return nil
}

// Exists checks if a key exists in cache
func (a *LRUAdapter) Exists(_ context.Context, key string) (bool, error) {
	_, ok := a.lookup(key)
	return ok, nil
}
