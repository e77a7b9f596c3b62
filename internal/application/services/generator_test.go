package services

import (
	"context"
	"sync"
	"time"

	"github.com/medqueue/backend/internal/domain/entities"
)

// scriptedGenerator replays values in order, then returns rest forever.
// IntN(n) maps the next value v to int(v*n).
type scriptedGenerator struct {
	mu     sync.Mutex
	values []float64
	rest   float64
	calls  int
}

func script(values ...float64) *scriptedGenerator {
	return &scriptedGenerator{values: values, rest: 0.5}
}

func (g *scriptedGenerator) Float64() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if len(g.values) == 0 {
		return g.rest
	}
	v := g.values[0]
	g.values = g.values[1:]
	return v
}

func (g *scriptedGenerator) IntN(n int) int {
	return int(g.Float64() * float64(n))
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	states []*entities.Hospital
	err    error
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, h *entities.Hospital) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states = append(b.states, h.Clone())
	return b.err
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.states)
}

func (b *recordingBroadcaster) last() *entities.Hospital {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.states) == 0 {
		return nil
	}
	return b.states[len(b.states)-1]
}

// tenAM is inside the morning rush and the Morning shift.
var tenAM = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func regular(token string, wait int) entities.Patient {
	return entities.Patient{Token: token, Name: "Test", Wait: wait, Priority: entities.PriorityRegular, Color: "green"}
}
