package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medqueue/backend/internal/adapters/cache"
)

func jsonHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		origin     string
		wantHeader string
	}{
		{"wildcard", []string{"*"}, "http://a.example", "*"},
		{"listed origin is echoed", []string{"http://a.example", "http://b.example"}, "http://b.example", "http://b.example"},
		{"unlisted origin gets nothing", []string{"http://a.example"}, "http://evil.example", ""},
		{"no origin header", []string{"http://a.example"}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := CORS(tt.allowed)(jsonHandler(`{}`))
			req := httptest.NewRequest(http.MethodGet, "/api/hospitals", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.wantHeader, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestLogging_RecordsStatusAndRoute(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/hospitals/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	w := httptest.NewRecorder()
	Logging(mux).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/hospitals/x", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"status":404`)
	assert.Contains(t, out, `"route":"GET /api/hospitals/{id}"`)
	assert.Contains(t, out, `"path":"/api/hospitals/x"`)
}

func TestObservability_NilMetrics(t *testing.T) {
	w := httptest.NewRecorder()
	Observability(nil)(jsonHandler(`{"ok":true}`)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"ok":true}`, w.Body.String())
}

func TestStatusRecorder_PassesFlushThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newStatusRecorder(rec)

	var w http.ResponseWriter = rw
	flusher, ok := w.(http.Flusher)
	require.True(t, ok)
	flusher.Flush()
	assert.True(t, rec.Flushed)

	_, _, err := rw.Hijack()
	assert.Error(t, err, "httptest recorder cannot be hijacked")
}

func TestCompression(t *testing.T) {
	body := `{"hospitals":[{"id":"apollo-delhi"}]}`

	t.Run("gzips when accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/hospitals", nil)
		req.Header.Set("Accept-Encoding", "gzip, deflate")
		w := httptest.NewRecorder()
		Compression(jsonHandler(body)).ServeHTTP(w, req)

		assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
		gz, err := gzip.NewReader(w.Body)
		require.NoError(t, err)
		plain, err := io.ReadAll(gz)
		require.NoError(t, err)
		assert.Equal(t, body, string(plain))
	})

	t.Run("leaves streams alone", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/stream/hospitals/apollo-delhi", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		w := httptest.NewRecorder()
		Compression(jsonHandler(body)).ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Content-Encoding"))
		assert.Equal(t, body, w.Body.String())
	})
}

func TestETag_NotModified(t *testing.T) {
	h := ETag(jsonHandler(`[1,2,3]`))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/hospitals", nil))
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/api/hospitals", nil)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotModified, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestETag_PassesErrorsThrough(t *testing.T) {
	h := ETag(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Hospital not found"}`))
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/hospitals/x", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, w.Header().Get("ETag"))
	assert.Equal(t, `{"error":"Hospital not found"}`, w.Body.String())
}

func TestCacheControl(t *testing.T) {
	tests := map[string]string{
		"/api/hospitals/search?q=apollo": "public, max-age=5, must-revalidate",
		"/api/hospitals/apollo-delhi":    "no-cache",
		"/api/health":                    "private, no-cache, must-revalidate",
	}
	for target, want := range tests {
		w := httptest.NewRecorder()
		CacheControl(jsonHandler(`{}`)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, want, w.Header().Get("Cache-Control"), target)
	}
}

func TestCacheMiddleware_CachesSearchOnly(t *testing.T) {
	var calls atomic.Int32
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"count":1}`))
	})
	h := NewCacheMiddleware(cache.NewLRUAdapter(16, time.Minute)).Middleware(next)

	serve := func(target string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
		return w
	}

	first := serve("/api/hospitals/search?city=Delhi&q=apollo")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	// query order does not change the key
	second := serve("/api/hospitals/search?q=apollo&city=Delhi")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, `{"count":1}`, second.Body.String())
	assert.Equal(t, int32(1), calls.Load())

	live := serve("/api/hospitals/apollo-delhi")
	assert.Empty(t, live.Header().Get("X-Cache"))
	serve("/api/hospitals/apollo-delhi")
	assert.Equal(t, int32(3), calls.Load())
}
