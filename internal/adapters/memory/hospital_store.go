package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/medqueue/backend/internal/domain/entities"
	"github.com/medqueue/backend/internal/domain/repositories"
	apperrors "github.com/medqueue/backend/pkg/errors"
)

// HospitalStore is the in-process HospitalRepository. Records go in and come
// out as deep copies so no caller can mutate store state without a write.
type HospitalStore struct {
	mu        sync.RWMutex
	hospitals map[string]*entities.Hospital
}

// NewHospitalStore creates an empty store
func NewHospitalStore() *HospitalStore {
	return &HospitalStore{hospitals: make(map[string]*entities.Hospital)}
}

var _ repositories.HospitalRepository = (*HospitalStore)(nil)

func notFound(id string) error {
	return apperrors.NewNotFoundError(fmt.Sprintf("hospital %q not found", id))
}

// Get returns a copy of the hospital
func (s *HospitalStore) Get(_ context.Context, id string) (*entities.Hospital, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.hospitals[id]
	if !ok {
		return nil, notFound(id)
	}
	return h.Clone(), nil
}

// List returns copies of all hospitals ordered by id
func (s *HospitalStore) List(_ context.Context) ([]*entities.Hospital, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*entities.Hospital, 0, len(s.hospitals))
	for _, h := range s.hospitals {
		out = append(out, h.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Upsert replaces the stored record
func (s *HospitalStore) Upsert(_ context.Context, hospital *entities.Hospital) error {
	if hospital == nil || hospital.ID == "" {
		return apperrors.NewValidationError("hospital id is required")
	}
	s.mu.Lock()
	s.hospitals[hospital.ID] = hospital.Clone()
	s.mu.Unlock()
	return nil
}

// Update runs fn against a copy of the record while holding the write lock and
// stores the result only when fn succeeds.
func (s *HospitalStore) Update(_ context.Context, id string, fn func(*entities.Hospital) error) (*entities.Hospital, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.hospitals[id]
	if !ok {
		return nil, notFound(id)
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = id
	s.hospitals[id] = next
	return next.Clone(), nil
}

// Initialize replaces the whole roster
func (s *HospitalStore) Initialize(_ context.Context, hospitals []*entities.Hospital) error {
	loaded := make(map[string]*entities.Hospital, len(hospitals))
	for _, h := range hospitals {
		if h == nil || h.ID == "" {
			continue
		}
		loaded[h.ID] = h.Clone()
	}

	s.mu.Lock()
	s.hospitals = loaded
	s.mu.Unlock()
	return nil
}

// Count returns the number of stored hospitals
func (s *HospitalStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.hospitals)
}
