package directory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/medqueue/backend/internal/domain/entities"
	"github.com/medqueue/backend/internal/domain/providers"
)

const (
	googlePlacesNearbyURL = "https://maps.googleapis.com/maps/api/place/nearbysearch/json"
	defaultCacheTTL       = 24 * time.Hour
	defaultHTTPTimeout    = 8 * time.Second
)

// GooglePlacesProvider implements HospitalDirectory with the Places Nearby Search API.
type GooglePlacesProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cache      providers.CacheProvider
	cacheTTL   time.Duration
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

// Options tune the provider; zero values fall back to defaults.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Cache      providers.CacheProvider
	CacheTTL   time.Duration
	RateLimit  float64
}

// NewGooglePlacesProvider creates a Places-backed directory.
func NewGooglePlacesProvider(apiKey string, opts Options) *GooglePlacesProvider {
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = googlePlacesNearbyURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	return &GooglePlacesProvider{
		apiKey:     apiKey,
		baseURL:    opts.BaseURL,
		httpClient: opts.HTTPClient,
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
		limiter:    rate.NewLimiter(limit, 1),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "google-places",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			},
		}),
	}
}

var _ providers.HospitalDirectory = (*GooglePlacesProvider)(nil)

// NearbyHospitals returns hospitals within radiusMeters of center.
func (g *GooglePlacesProvider) NearbyHospitals(ctx context.Context, center entities.Location, radiusMeters int) ([]providers.PlaceCandidate, error) {
	if g.apiKey == "" {
		return nil, fmt.Errorf("google maps api key is required")
	}

	cacheKey := fmt.Sprintf("places:v1:nearby:%s", hashKey(fmt.Sprintf("%.4f,%.4f,%d", center.Lat, center.Lng, radiusMeters)))
	if g.cache != nil {
		if cached, err := g.cache.Get(ctx, cacheKey); err == nil && len(cached) > 0 {
			var places []providers.PlaceCandidate
			if err := json.Unmarshal(cached, &places); err == nil {
				return places, nil
			}
		}
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("places rate limiter: %w", err)
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.doNearbySearch(ctx, center, radiusMeters)
	})
	if err != nil {
		return nil, err
	}
	resp := result.(*googlePlacesNearbyResponse)

	places := make([]providers.PlaceCandidate, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.PlaceID == "" {
			continue
		}
		places = append(places, providers.PlaceCandidate{
			PlaceID:      r.PlaceID,
			Name:         r.Name,
			Vicinity:     r.Vicinity,
			Location:     entities.Location{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
			Rating:       r.Rating,
			TotalRatings: r.UserRatingsTotal,
		})
	}

	if g.cache != nil {
		if payload, err := json.Marshal(places); err == nil {
			_ = g.cache.Set(ctx, cacheKey, payload, int(g.cacheTTL.Seconds()))
		}
	}
	return places, nil
}

func (g *GooglePlacesProvider) doNearbySearch(ctx context.Context, center entities.Location, radiusMeters int) (*googlePlacesNearbyResponse, error) {
	params := url.Values{}
	params.Set("location", fmt.Sprintf("%f,%f", center.Lat, center.Lng))
	params.Set("radius", fmt.Sprintf("%d", radiusMeters))
	params.Set("type", "hospital")
	params.Set("key", g.apiKey)

	reqURL := fmt.Sprintf("%s?%s", g.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build places nearby request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("places nearby request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("places nearby search returned status %d", resp.StatusCode)
	}

	var payload googlePlacesNearbyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode places nearby response: %w", err)
	}

	switch payload.Status {
	case "OK", "ZERO_RESULTS":
		return &payload, nil
	default:
		if payload.ErrorMessage != "" {
			return nil, fmt.Errorf("places nearby search failed: %s - %s", payload.Status, payload.ErrorMessage)
		}
		return nil, fmt.Errorf("places nearby search failed: %s", payload.Status)
	}
}

func hashKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:16])
}

type googlePlacesNearbyResponse struct {
	Status       string                     `json:"status"`
	ErrorMessage string                     `json:"error_message,omitempty"`
	Results      []googlePlacesNearbyResult `json:"results"`
}

type googlePlacesNearbyResult struct {
	PlaceID          string         `json:"place_id"`
	Name             string         `json:"name"`
	Vicinity         string         `json:"vicinity"`
	Rating           float64        `json:"rating"`
	UserRatingsTotal int            `json:"user_ratings_total"`
	Geometry         googleGeometry `json:"geometry"`
}

type googleGeometry struct {
	Location googleLocation `json:"location"`
}

type googleLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
