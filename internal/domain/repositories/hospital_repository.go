package repositories

import (
	"context"

	"github.com/medqueue/backend/internal/domain/entities"
)

// HospitalRepository is the authoritative store of live hospital records.
// Implementations hand out copies: callers never hold a reference into the store.
type HospitalRepository interface {
	// Get returns the hospital or a not-found AppError
	Get(ctx context.Context, id string) (*entities.Hospital, error)

	// List returns every hospital in id order
	List(ctx context.Context) ([]*entities.Hospital, error)

	// Upsert replaces the full record keyed by hospital.ID
	Upsert(ctx context.Context, hospital *entities.Hospital) error

	// Update applies fn to the stored record under the write lock and returns
	// the result. fn errors abort the update.
	Update(ctx context.Context, id string, fn func(*entities.Hospital) error) (*entities.Hospital, error)

	// Initialize replaces the store contents with the given roster
	Initialize(ctx context.Context, hospitals []*entities.Hospital) error

	// Count returns the number of hospitals
	Count(ctx context.Context) int
}

// HospitalSearchParams filters directory searches. Zero values disable a filter.
type HospitalSearchParams struct {
	Query    string
	City     string
	Type     entities.HospitalType
	Near     *entities.Location
	RadiusKm float64
	Limit    int
}

// HospitalSearchRepository ranks hospital ids for a directory search. Live
// fields (queue length, beds) are always read back from HospitalRepository.
type HospitalSearchRepository interface {
	// Index adds or refreshes one hospital document
	Index(ctx context.Context, hospital *entities.Hospital) error

	// BulkIndex indexes a full roster
	BulkIndex(ctx context.Context, hospitals []*entities.Hospital) error

	// Search returns matching hospital ids, best match first
	Search(ctx context.Context, params HospitalSearchParams) ([]string, error)
}
