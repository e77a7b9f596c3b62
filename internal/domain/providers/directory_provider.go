package providers

import (
	"context"

	"github.com/medqueue/backend/internal/domain/entities"
)

// HospitalDirectory finds real hospitals near a point. It augments the seed
// roster at startup and is never required for the server to run.
type HospitalDirectory interface {
	NearbyHospitals(ctx context.Context, center entities.Location, radiusMeters int) ([]PlaceCandidate, error)
}

// PlaceCandidate is one directory result.
type PlaceCandidate struct {
	PlaceID      string
	Name         string
	Vicinity     string
	Location     entities.Location
	Rating       float64
	TotalRatings int
}
