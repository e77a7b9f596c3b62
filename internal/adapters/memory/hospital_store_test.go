package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medqueue/backend/internal/domain/entities"
	apperrors "github.com/medqueue/backend/pkg/errors"
)

func seedStore(t *testing.T) *HospitalStore {
	t.Helper()
	store := NewHospitalStore()
	require.NoError(t, store.Initialize(context.Background(), []*entities.Hospital{
		{ID: "b-hosp", Name: "B", Queue: []entities.Patient{{Token: "TK-1"}}},
		{ID: "a-hosp", Name: "A"},
	}))
	return store
}

func TestHospitalStore_GetUnknownIsNotFound(t *testing.T) {
	store := seedStore(t)

	_, err := store.Get(context.Background(), "does-not-exist")

	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestHospitalStore_ListIsOrderedByID(t *testing.T) {
	store := seedStore(t)

	list, err := store.List(context.Background())

	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a-hosp", list[0].ID)
	assert.Equal(t, "b-hosp", list[1].ID)
	assert.Equal(t, 2, store.Count(context.Background()))
}

func TestHospitalStore_ReturnsCopies(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	h, err := store.Get(ctx, "b-hosp")
	require.NoError(t, err)
	h.Queue[0].Token = "mutated"
	h.Name = "mutated"

	again, err := store.Get(ctx, "b-hosp")
	require.NoError(t, err)
	assert.Equal(t, "TK-1", again.Queue[0].Token)
	assert.Equal(t, "B", again.Name)
}

func TestHospitalStore_UpsertReplacesRecord(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, &entities.Hospital{ID: "a-hosp", Name: "Renamed"}))
	require.NoError(t, store.Upsert(ctx, &entities.Hospital{ID: "c-hosp", Name: "New"}))

	a, _ := store.Get(ctx, "a-hosp")
	assert.Equal(t, "Renamed", a.Name)
	assert.Equal(t, 3, store.Count(ctx))

	assert.Error(t, store.Upsert(ctx, &entities.Hospital{}))
}

func TestHospitalStore_UpdateAbortsOnError(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := store.Update(ctx, "b-hosp", func(h *entities.Hospital) error {
		h.Queue = nil
		return boom
	})
	require.ErrorIs(t, err, boom)

	h, _ := store.Get(ctx, "b-hosp")
	assert.Len(t, h.Queue, 1)
}

func TestHospitalStore_UpdateUnknownIsNotFound(t *testing.T) {
	store := seedStore(t)

	_, err := store.Update(context.Background(), "nope", func(*entities.Hospital) error { return nil })

	assert.True(t, apperrors.IsNotFound(err))
}

func TestHospitalStore_ConcurrentUpdatesAreNotLost(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(ctx, "a-hosp", func(h *entities.Hospital) error {
				h.Queue = append(h.Queue, entities.Patient{Token: "TK"})
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	h, err := store.Get(ctx, "a-hosp")
	require.NoError(t, err)
	assert.Len(t, h.Queue, 50)
}
