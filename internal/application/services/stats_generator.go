package services

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/medqueue/backend/internal/domain/entities"
)

// Generator is the random source behind every synthetic figure. Tests swap
// in a scripted implementation to make ticks reproducible.
type Generator interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// IntN returns a value in [0, n). n must be positive.
	IntN(n int) int
}

// SeededGenerator is a goroutine-safe PCG source.
type SeededGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSeededGenerator returns a generator seeded with seed. A zero seed picks
// a time-based seed so production runs differ.
func NewSeededGenerator(seed uint64) *SeededGenerator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &SeededGenerator{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (g *SeededGenerator) Float64() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.Float64()
}

func (g *SeededGenerator) IntN(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.IntN(n)
}

const (
	// PlaceholderPhone is the contact number used for synthetic and defaulted patients.
	PlaceholderPhone = "+916371401928"

	tokenBase       = 12000
	peakMultiplier  = 1.5
	minOccupancy    = 0.65
	occupancySpread = 0.25
)

var (
	firstNames = []string{"Rahul", "Priya", "Amit", "Sneha", "Vikram", "Anita", "Raj", "Meera", "Suresh", "Divya"}
	lastNames  = []string{"Sharma", "Verma", "Kumar", "Singh", "Patel", "Gupta", "Reddy", "Nair", "Chopra", "Desai"}
	weekdays   = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
)

type peakBucket struct {
	label string
	span  int
	base  int
}

var peakBuckets = []peakBucket{
	{"9-10 AM", 30, 20},
	{"10-11 AM", 35, 25},
	{"11-12 PM", 30, 20},
	{"4-5 PM", 40, 30},
	{"5-6 PM", 35, 25},
}

// StatsGenerator synthesizes patients, bed occupancy, staffing and
// descriptive analytics.
type StatsGenerator struct {
	rng Generator
}

// NewStatsGenerator creates a stats generator over rng.
func NewStatsGenerator(rng Generator) *StatsGenerator {
	return &StatsGenerator{rng: rng}
}

// IsPeakHour reports whether hour falls in the morning (9-12) or evening
// (16-19) rush, both ends inclusive.
func IsPeakHour(hour int) bool {
	return (hour >= 9 && hour <= 12) || (hour >= 16 && hour <= 19)
}

// PeakMultiplier scales queue volume during rush hours.
func PeakMultiplier(hour int) float64 {
	if IsPeakHour(hour) {
		return peakMultiplier
	}
	return 1.0
}

// Patient synthesizes a walk-in with a severity-driven priority.
func (g *StatsGenerator) Patient(token string, at time.Time) entities.Patient {
	var (
		priority entities.Priority
		wait     int
	)
	switch severity := g.rng.Float64(); {
	case severity > 0.9:
		priority, wait = entities.PriorityEmergency, g.rng.IntN(5)+2
	case severity > 0.7:
		priority, wait = entities.PriorityUrgent, g.rng.IntN(15)+10
	default:
		priority, wait = entities.PriorityRegular, g.rng.IntN(25)+15
	}

	name := firstNames[g.rng.IntN(len(firstNames))] + " " + lastNames[g.rng.IntN(len(lastNames))]
	return entities.Patient{
		Token:     token,
		Name:      name,
		Phone:     PlaceholderPhone,
		Wait:      wait,
		Priority:  priority,
		Color:     priority.Color(),
		Timestamp: at,
	}
}

// WalkInToken draws a simulator token. Collisions are possible and accepted.
func (g *StatsGenerator) WalkInToken() string {
	return fmt.Sprintf("TK-%d", tokenBase+g.rng.IntN(10000))
}

// AdmitToken draws the token for a manual admission into a queue of queueLen.
func (g *StatsGenerator) AdmitToken(queueLen int) string {
	return fmt.Sprintf("TK-%d", tokenBase+queueLen+g.rng.IntN(100))
}

// SeedHospital fills base with an initial queue, beds, staffing and analytics
// as of now. Identity fields on base are kept.
func (g *StatsGenerator) SeedHospital(base *entities.Hospital, now time.Time) *entities.Hospital {
	h := base.Clone()
	if h.Type == "" {
		h.Type = entities.HospitalTypeGeneral
	}

	size := int(math.Floor(g.rng.Float64()*15*PeakMultiplier(now.Hour()))) + 3
	queue := make([]entities.Patient, 0, size)
	for i := 0; i < size; i++ {
		p := g.Patient("", now)
		p.Token = fmt.Sprintf("TK-%d", tokenBase+i+g.rng.IntN(100))
		p.Timestamp = now.Add(-time.Duration(g.rng.Float64() * float64(time.Hour)))
		queue = append(queue, p)
	}
	entities.SortQueue(queue)
	h.Queue = queue

	h.Beds.Total = g.rng.IntN(200) + 100
	g.RefreshStats(h, now)
	return h
}

// RefreshStats regenerates bed occupancy against the hospital's fixed bed
// total, re-derives wards and staffing, redraws the descriptive analytics and
// finally recomputes the live figures from the current queue.
func (g *StatsGenerator) RefreshStats(h *entities.Hospital, now time.Time) {
	total := h.Beds.Total
	rate := minOccupancy + g.rng.Float64()*occupancySpread
	h.SetBeds(total, int(math.Floor(float64(total)*rate)))
	h.Staffing = entities.NewStaffing(entities.ShiftForHour(now.Hour()), int(math.Floor(float64(total)*0.8)))

	h.Analytics.DailyPatients = g.rng.IntN(200) + 150
	trend := make([]entities.TrendPoint, len(weekdays))
	for i, day := range weekdays {
		trend[i] = entities.TrendPoint{Day: day, Patients: g.rng.IntN(100) + 100}
	}
	h.Analytics.WeeklyTrend = trend

	peaks := make([]entities.PeakHour, len(peakBuckets))
	for i, b := range peakBuckets {
		peaks[i] = entities.PeakHour{Hour: b.label, Count: g.rng.IntN(b.span) + b.base}
	}
	h.Analytics.PeakHours = peaks
	h.Analytics.SatisfactionRate = 85 + g.rng.IntN(10)

	h.RefreshQueueAnalytics()
	h.LastUpdate = now
}
