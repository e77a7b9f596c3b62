package directory

import (
	"context"

	"github.com/medqueue/backend/internal/domain/entities"
	"github.com/medqueue/backend/internal/domain/providers"
)

// StaticDirectory serves a fixed candidate list per centre. It backs local
// runs without a Google key and the service tests.
type StaticDirectory struct {
	Places map[entities.Location][]providers.PlaceCandidate
	Err    error
}

// NearbyHospitals returns the candidates registered for center.
func (s *StaticDirectory) NearbyHospitals(_ context.Context, center entities.Location, _ int) ([]providers.PlaceCandidate, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Places[center], nil
}
