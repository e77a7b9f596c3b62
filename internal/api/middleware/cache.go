package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/medqueue/backend/internal/domain/providers"
)

const responseCachePrefix = "medqueue:response:"

// CacheMiddleware serves repeated GETs of selected read-only routes from the
// cache provider. Routes are matched on the exact path.
type CacheMiddleware struct {
	cache providers.CacheProvider
	ttls  map[string]int
}

// NewCacheMiddleware creates a cache middleware. Only directory search is
// cached; every other hospital route serves live state.
func NewCacheMiddleware(cache providers.CacheProvider) *CacheMiddleware {
	return &CacheMiddleware{
		cache: cache,
		ttls: map[string]int{
			"/api/hospitals/search": 5,
		},
	}
}

// Middleware returns the cache middleware handler
func (m *CacheMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ttl, cacheable := m.ttls[r.URL.Path]
		if !cacheable || r.Method != http.MethodGet || m.cache == nil {
			next.ServeHTTP(w, r)
			return
		}

		key := responseKey(r)
		body, err := m.cache.Get(r.Context(), key)
		switch {
		case err == nil:
			w.Header().Set("X-Cache", "HIT")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(body)
			return
		case !errors.Is(err, providers.ErrCacheMiss):
			log.Warn().Err(err).Str("path", r.URL.Path).Msg("response cache read failed")
		}

		w.Header().Set("X-Cache", "MISS")
		tee := &teeRecorder{statusRecorder: newStatusRecorder(w)}
		next.ServeHTTP(tee, r)

		if tee.statusCode != http.StatusOK || tee.body.Len() == 0 {
			return
		}
		if err := m.cache.Set(r.Context(), key, tee.body.Bytes(), ttl); err != nil {
			log.Warn().Err(err).Str("path", r.URL.Path).Msg("response cache write failed")
		}
	})
}

// responseKey hashes the path and the canonical (sorted) query, so parameter
// order does not split the cache.
func responseKey(r *http.Request) string {
	canonical := r.URL.Path
	if r.URL.RawQuery != "" {
		canonical += "?" + r.URL.Query().Encode()
	}
	sum := sha256.Sum256([]byte(canonical))
	return responseCachePrefix + hex.EncodeToString(sum[:])
}

// teeRecorder copies the response body while passing it through.
type teeRecorder struct {
	*statusRecorder
	body bytes.Buffer
}

func (t *teeRecorder) Write(b []byte) (int, error) {
	t.body.Write(b)
	return t.statusRecorder.Write(b)
}
