package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medqueue/backend/internal/adapters/cache"
	"github.com/medqueue/backend/internal/domain/entities"
)

const nearbyOK = `{
  "status": "OK",
  "results": [
    {"place_id": "ChIJ1", "name": "City Care Hospital", "vicinity": "MG Road", "rating": 4.2, "user_ratings_total": 310,
     "geometry": {"location": {"lat": 12.97, "lng": 77.59}}},
    {"place_id": "ChIJ2", "name": "Unrated Clinic", "vicinity": "Indiranagar",
     "geometry": {"location": {"lat": 12.98, "lng": 77.64}}}
  ]
}`

func TestGooglePlacesProvider_NearbyHospitals(t *testing.T) {
	var gotQuery atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(nearbyOK))
	}))
	defer server.Close()

	provider := NewGooglePlacesProvider("AIzaTest", Options{BaseURL: server.URL})

	places, err := provider.NearbyHospitals(context.Background(), entities.Location{Lat: 12.9716, Lng: 77.5946}, 10000)
	require.NoError(t, err)
	require.Len(t, places, 2)

	assert.Equal(t, "ChIJ1", places[0].PlaceID)
	assert.Equal(t, "City Care Hospital", places[0].Name)
	assert.Equal(t, "MG Road", places[0].Vicinity)
	assert.Equal(t, 4.2, places[0].Rating)
	assert.Equal(t, 310, places[0].TotalRatings)
	assert.Equal(t, 12.97, places[0].Location.Lat)
	assert.Zero(t, places[1].Rating)

	q := gotQuery.Load().(url.Values)
	assert.Equal(t, []string{"hospital"}, q["type"])
	assert.Equal(t, []string{"10000"}, q["radius"])
	assert.Equal(t, []string{"AIzaTest"}, q["key"])
}

func TestGooglePlacesProvider_UsesCache(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(nearbyOK))
	}))
	defer server.Close()

	provider := NewGooglePlacesProvider("AIzaTest", Options{
		BaseURL: server.URL,
		Cache:   cache.NewLRUAdapter(8, time.Hour),
	})
	center := entities.Location{Lat: 19.076, Lng: 72.8777}

	for i := 0; i < 3; i++ {
		places, err := provider.NearbyHospitals(context.Background(), center, 10000)
		require.NoError(t, err)
		assert.Len(t, places, 2)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestGooglePlacesProvider_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "denied", status: http.StatusOK, body: `{"status":"REQUEST_DENIED","error_message":"bad key"}`, wantErr: "REQUEST_DENIED - bad key"},
		{name: "http error", status: http.StatusBadGateway, body: `{}`, wantErr: "status 502"},
		{name: "bad json", status: http.StatusOK, body: `{`, wantErr: "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			provider := NewGooglePlacesProvider("AIzaTest", Options{BaseURL: server.URL})
			_, err := provider.NearbyHospitals(context.Background(), entities.Location{}, 1000)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGooglePlacesProvider_ZeroResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ZERO_RESULTS","results":[]}`))
	}))
	defer server.Close()

	provider := NewGooglePlacesProvider("AIzaTest", Options{BaseURL: server.URL})
	places, err := provider.NearbyHospitals(context.Background(), entities.Location{}, 1000)

	require.NoError(t, err)
	assert.Empty(t, places)
}

func TestGooglePlacesProvider_RequiresKey(t *testing.T) {
	provider := NewGooglePlacesProvider("", Options{})
	_, err := provider.NearbyHospitals(context.Background(), entities.Location{}, 1000)
	assert.Error(t, err)
}
