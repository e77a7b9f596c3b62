package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/medqueue/backend/internal/domain/entities"
	"github.com/medqueue/backend/internal/domain/repositories"
	"github.com/medqueue/backend/pkg/scheduler"
)

const (
	leaveProbability  = 0.2
	arriveProbability = 0.3
)

// ErrSimulatorRunning is returned by Start when the loop is already active.
var ErrSimulatorRunning = errors.New("queue simulator already running")

// QueueSimulator advances every hospital's queue on a fixed interval:
// departures, walk-ins, re-sorting and stat refresh, then a broadcast.
type QueueSimulator struct {
	store       repositories.HospitalRepository
	broadcaster Broadcaster
	stats       *StatsGenerator
	rng         Generator
	interval    time.Duration
	now         func() time.Time

	ticks    metric.Int64Counter
	duration metric.Float64Histogram

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewQueueSimulator creates a simulator drawing from rng.
func NewQueueSimulator(store repositories.HospitalRepository, broadcaster Broadcaster, rng Generator, interval time.Duration) *QueueSimulator {
	meter := otel.Meter("medqueue/simulator")
	ticks, _ := meter.Int64Counter("simulator.ticks",
		metric.WithDescription("Completed simulator passes"))
	duration, _ := meter.Float64Histogram("simulator.tick.duration",
		metric.WithDescription("Simulator pass duration"),
		metric.WithUnit("ms"))

	return &QueueSimulator{
		store:       store,
		broadcaster: broadcaster,
		stats:       NewStatsGenerator(rng),
		rng:         rng,
		interval:    interval,
		now:         time.Now,
		ticks:       ticks,
		duration:    duration,
	}
}

// SetClock overrides the time source used for timestamps and shift selection.
func (s *QueueSimulator) SetClock(now func() time.Time) {
	s.now = now
}

// Tick runs one pass over every hospital and returns how many were updated.
// Each hospital is mutated under the store lock and broadcast afterwards.
func (s *QueueSimulator) Tick(ctx context.Context) (int, error) {
	start := time.Now()
	hospitals, err := s.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list hospitals: %w", err)
	}

	now := s.now()
	updated := 0
	for _, h := range hospitals {
		if err := ctx.Err(); err != nil {
			return updated, err
		}

		next, err := s.store.Update(ctx, h.ID, func(h *entities.Hospital) error {
			s.advance(h, now)
			return nil
		})
		if err != nil {
			log.Warn().Err(err).Str("hospital_id", h.ID).Msg("simulator skipped hospital")
			continue
		}
		updated++

		if err := s.broadcaster.Broadcast(ctx, next); err != nil {
			log.Warn().Err(err).Str("hospital_id", h.ID).Msg("simulator broadcast failed")
		}
	}

	s.ticks.Add(ctx, 1)
	s.duration.Record(ctx, float64(time.Since(start).Milliseconds()))
	return updated, nil
}

func (s *QueueSimulator) advance(h *entities.Hospital, now time.Time) {
	if len(h.Queue) > 0 && s.rng.Float64() < leaveProbability {
		h.Queue = h.Queue[1:]
	}

	if s.rng.Float64() < arriveProbability {
		token := s.stats.WalkInToken()
		h.Queue = append(h.Queue, s.stats.Patient(token, now))
		entities.SortQueue(h.Queue)
	}

	s.stats.RefreshStats(h, now)
}

// Start launches the tick loop in the background.
func (s *QueueSimulator) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrSimulatorRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		scheduler.Every(ctx, s.interval, "queue-simulator", func(ctx context.Context) error {
			_, err := s.Tick(ctx)
			return err
		})
	}(s.done)

	log.Info().Dur("interval", s.interval).Msg("queue simulator started")
	return nil
}

// Stop halts the loop and waits for an in-flight tick to finish.
func (s *QueueSimulator) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Info().Msg("queue simulator stopped")
}

// Running reports whether the loop is active.
func (s *QueueSimulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
