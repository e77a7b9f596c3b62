package search

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/medqueue/backend/internal/domain/entities"
	"github.com/medqueue/backend/internal/domain/repositories"
)

// MemorySearch answers directory searches straight from the hospital store.
// Index calls are no-ops because every search reads the live roster.
type MemorySearch struct {
	store repositories.HospitalRepository
}

var _ repositories.HospitalSearchRepository = (*MemorySearch)(nil)

// NewMemorySearch creates a store-backed search
func NewMemorySearch(store repositories.HospitalRepository) *MemorySearch {
	return &MemorySearch{store: store}
}

func (m *MemorySearch) Index(context.Context, *entities.Hospital) error { return nil }

func (m *MemorySearch) BulkIndex(context.Context, []*entities.Hospital) error { return nil }

type scored struct {
	id       string
	rating   float64
	distance float64
}

// Search filters by text, city, type and radius. Results are nearest first
// when a centre is given, otherwise best rated first.
func (m *MemorySearch) Search(ctx context.Context, params repositories.HospitalSearchParams) ([]string, error) {
	hospitals, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(params.Query))
	var hits []scored
	for _, h := range hospitals {
		if query != "" && !matchesText(h, query) {
			continue
		}
		if params.City != "" && !strings.EqualFold(h.City, params.City) {
			continue
		}
		if params.Type != "" && h.Summary().Type != params.Type {
			continue
		}
		s := scored{id: h.ID, rating: h.Rating}
		if params.Near != nil {
			s.distance = HaversineKm(*params.Near, h.Location)
			if params.RadiusKm > 0 && s.distance > params.RadiusKm {
				continue
			}
		}
		hits = append(hits, s)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if params.Near != nil && hits[i].distance != hits[j].distance {
			return hits[i].distance < hits[j].distance
		}
		if hits[i].rating != hits[j].rating {
			return hits[i].rating > hits[j].rating
		}
		return hits[i].id < hits[j].id
	})

	if params.Limit > 0 && len(hits) > params.Limit {
		hits = hits[:params.Limit]
	}
	ids := make([]string, len(hits))
	for i, s := range hits {
		ids[i] = s.id
	}
	return ids, nil
}

func matchesText(h *entities.Hospital, query string) bool {
	return strings.Contains(strings.ToLower(h.Name), query) ||
		strings.Contains(strings.ToLower(h.Address), query) ||
		strings.Contains(strings.ToLower(h.City), query)
}

// HaversineKm is the great-circle distance between two points in kilometres.
func HaversineKm(a, b entities.Location) float64 {
	const earthRadiusKm = 6371.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}
