package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medqueue/backend/internal/adapters/memory"
	"github.com/medqueue/backend/internal/domain/entities"
)

func newSimStore(t *testing.T, queues map[string][]entities.Patient) *memory.HospitalStore {
	t.Helper()
	store := memory.NewHospitalStore()
	var hospitals []*entities.Hospital
	for id, q := range queues {
		h := &entities.Hospital{ID: id, Name: id, Queue: q}
		h.SetBeds(100, 70)
		hospitals = append(hospitals, h)
	}
	require.NoError(t, store.Initialize(context.Background(), hospitals))
	return store
}

func newTestSimulator(store *memory.HospitalStore, b Broadcaster, rng Generator) *QueueSimulator {
	sim := NewQueueSimulator(store, b, rng, 10*time.Millisecond)
	sim.SetClock(func() time.Time { return tenAM })
	return sim
}

func TestQueueSimulator_TickDeparture(t *testing.T) {
	store := newSimStore(t, map[string][]entities.Patient{
		"h1": {regular("TK-A", 20), regular("TK-B", 30)},
	})
	b := &recordingBroadcaster{}
	// leave, no arrival, then stat refresh draws
	sim := newTestSimulator(store, b, script(0.1, 0.9))

	n, err := sim.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	h, err := store.Get(context.Background(), "h1")
	require.NoError(t, err)
	require.Len(t, h.Queue, 1)
	assert.Equal(t, "TK-B", h.Queue[0].Token)
	assert.Equal(t, 30, h.Analytics.AvgWaitTime)
	assert.Equal(t, 5, h.Analytics.CurrentLoad)
	assert.Equal(t, 0, h.Analytics.EmergencyRate)
	assert.Equal(t, 100, h.Beds.Total)
	assert.Equal(t, h.Beds.Total-h.Beds.Occupied, h.Beds.Available)
	assert.Equal(t, "Morning", h.Staffing.CurrentShift)
	assert.Equal(t, tenAM, h.LastUpdate)

	require.Equal(t, 1, b.count())
	assert.Equal(t, h, b.last())
}

func TestQueueSimulator_TickArrivalIsSortedAhead(t *testing.T) {
	store := newSimStore(t, map[string][]entities.Patient{
		"h1": {regular("TK-A", 20)},
	})
	b := &recordingBroadcaster{}
	// no leave, arrive, token, severity, wait, first, last
	sim := newTestSimulator(store, b, script(0.5, 0.1, 0.5, 0.95, 0.0, 0.0, 0.0))

	_, err := sim.Tick(context.Background())
	require.NoError(t, err)

	h, err := store.Get(context.Background(), "h1")
	require.NoError(t, err)
	require.Len(t, h.Queue, 2)

	walkIn := h.Queue[0]
	assert.Equal(t, "TK-17000", walkIn.Token)
	assert.Equal(t, entities.PriorityEmergency, walkIn.Priority)
	assert.Equal(t, "red", walkIn.Color)
	assert.Equal(t, 2, walkIn.Wait)
	assert.Equal(t, "Rahul Sharma", walkIn.Name)
	assert.Equal(t, tenAM, walkIn.Timestamp)
	assert.Equal(t, "TK-A", h.Queue[1].Token)

	assert.True(t, entities.QueueSorted(h.Queue))
	assert.Equal(t, 11, h.Analytics.AvgWaitTime)
	assert.Equal(t, 50, h.Analytics.EmergencyRate)
}

func TestQueueSimulator_EmptyQueueSkipsDepartureDraw(t *testing.T) {
	store := newSimStore(t, map[string][]entities.Patient{"h1": {}})
	// The first draw decides arrival because an empty queue has nobody to leave.
	sim := newTestSimulator(store, &recordingBroadcaster{}, script(0.1, 0.0, 0.0))

	_, err := sim.Tick(context.Background())
	require.NoError(t, err)

	h, err := store.Get(context.Background(), "h1")
	require.NoError(t, err)
	require.Len(t, h.Queue, 1)
	assert.Equal(t, "TK-12000", h.Queue[0].Token)
	assert.Equal(t, entities.PriorityRegular, h.Queue[0].Priority)
}

func TestQueueSimulator_TickInvariantsOverManyTicks(t *testing.T) {
	store := memory.NewHospitalStore()
	stats := NewStatsGenerator(NewSeededGenerator(5))
	var hospitals []*entities.Hospital
	for _, id := range []string{"a", "b", "c"} {
		hospitals = append(hospitals, stats.SeedHospital(&entities.Hospital{ID: id, Name: id}, tenAM))
	}
	require.NoError(t, store.Initialize(context.Background(), hospitals))

	b := &recordingBroadcaster{}
	sim := newTestSimulator(store, b, NewSeededGenerator(6))

	for i := 0; i < 40; i++ {
		n, err := sim.Tick(context.Background())
		require.NoError(t, err)
		require.Equal(t, 3, n)
	}
	assert.Equal(t, 120, b.count())

	all, err := store.List(context.Background())
	require.NoError(t, err)
	for _, h := range all {
		assert.True(t, entities.QueueSorted(h.Queue), h.ID)
		assert.Equal(t, h.Beds.Total-h.Beds.Occupied, h.Beds.Available)

		want := 0
		if len(h.Queue) > 0 {
			sum := 0
			for _, p := range h.Queue {
				sum += p.Wait
			}
			want = sum / len(h.Queue)
		}
		assert.Equal(t, want, h.Analytics.AvgWaitTime, h.ID)
	}
}

func TestQueueSimulator_SeededTicksAreReproducible(t *testing.T) {
	run := func() []*entities.Hospital {
		store := memory.NewHospitalStore()
		seedStats := NewStatsGenerator(NewSeededGenerator(11))
		require.NoError(t, store.Initialize(context.Background(), []*entities.Hospital{
			seedStats.SeedHospital(&entities.Hospital{ID: "x", Name: "X"}, tenAM),
			seedStats.SeedHospital(&entities.Hospital{ID: "y", Name: "Y"}, tenAM),
		}))
		sim := newTestSimulator(store, &recordingBroadcaster{}, NewSeededGenerator(12))
		for i := 0; i < 10; i++ {
			_, err := sim.Tick(context.Background())
			require.NoError(t, err)
		}
		all, err := store.List(context.Background())
		require.NoError(t, err)
		return all
	}

	assert.Equal(t, run(), run())
}

func TestQueueSimulator_BroadcastFailureDoesNotStopTick(t *testing.T) {
	store := newSimStore(t, map[string][]entities.Patient{"a": {}, "b": {}})
	b := &recordingBroadcaster{err: assert.AnError}
	sim := newTestSimulator(store, b, NewSeededGenerator(3))

	n, err := sim.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, b.count())
}

func TestQueueSimulator_StartStop(t *testing.T) {
	store := newSimStore(t, map[string][]entities.Patient{"h1": {}})
	b := &recordingBroadcaster{}
	sim := newTestSimulator(store, b, NewSeededGenerator(8))

	require.NoError(t, sim.Start(context.Background()))
	assert.True(t, sim.Running())
	assert.ErrorIs(t, sim.Start(context.Background()), ErrSimulatorRunning)

	require.Eventually(t, func() bool { return b.count() >= 2 }, 2*time.Second, 5*time.Millisecond)

	sim.Stop()
	assert.False(t, sim.Running())
	stopped := b.count()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, stopped, b.count())

	sim.Stop()
}
