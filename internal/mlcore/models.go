// Package mlcore serves the simulated prediction models behind the ML
// service binary.
package mlcore

import (
	"math"
	"sort"
)

// Model names reported by the status endpoint.
var ModelNames = []string{"wait_time_lstm", "career_matcher_xgb"}

const (
	waitConfidence     = 0.92
	eveningMultiplier  = 1.3
	surgeThresholdMins = 30.0
)

// Source supplies uniform floats in [0, 1).
type Source interface {
	Float64() float64
}

// QueueData describes the queue a wait time is predicted for.
type QueueData struct {
	CurrentLength    int     `json:"current_length"`
	AvgConsultTime   float64 `json:"avg_consult_time"`
	DoctorsAvailable int     `json:"doctors_available"`
	HourOfDay        int     `json:"hour_of_day"`
}

// WaitTimeEstimate is the wait-time model output.
type WaitTimeEstimate struct {
	EstimatedWaitMinutes float64 `json:"estimated_wait_minutes"`
	Confidence           float64 `json:"confidence"`
	SurgeDetected        bool    `json:"surge_detected"`
}

// CareerProfile is a student's aptitude and interest profile.
type CareerProfile struct {
	AptitudeScores map[string]any `json:"aptitude_scores"`
	Interests      []string       `json:"interests"`
	Skills         []string       `json:"skills"`
}

// CareerMatch is one scored career.
type CareerMatch struct {
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// CareerMatchResult is the career model output, best match first.
type CareerMatchResult struct {
	Matches            []CareerMatch `json:"matches"`
	SuccessProbability float64       `json:"success_probability"`
}

type careerBand struct {
	title    string
	min, max float64
}

var careerBands = []careerBand{
	{"Software Architect", 85, 98},
	{"Data Scientist", 80, 95},
	{"AI Researcher", 75, 92},
}

// Models runs the simulated models against a random source.
type Models struct {
	rng Source
}

// NewModels creates the model set.
func NewModels(rng Source) *Models {
	return &Models{rng: rng}
}

func (m *Models) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*m.rng.Float64()
}

// PredictWaitTime spreads the queue over the available doctors, adds noise
// in [-2, 5) minutes and applies the evening rush multiplier for hours 17-20.
// Surge is judged before noise is added.
func (m *Models) PredictWaitTime(q QueueData) WaitTimeEstimate {
	base := float64(q.CurrentLength) * q.AvgConsultTime / float64(max(q.DoctorsAvailable, 1))
	noise := m.uniform(-2, 5)

	if q.HourOfDay >= 17 && q.HourOfDay <= 20 {
		base *= eveningMultiplier
	}

	return WaitTimeEstimate{
		EstimatedWaitMinutes: roundTo(base+noise, 1),
		Confidence:           waitConfidence,
		SurgeDetected:        base > surgeThresholdMins,
	}
}

// PredictCareerMatch scores each career inside its band. The profile does
// not influence the scores yet.
func (m *Models) PredictCareerMatch(CareerProfile) CareerMatchResult {
	matches := make([]CareerMatch, 0, len(careerBands))
	for _, band := range careerBands {
		matches = append(matches, CareerMatch{Title: band.title, Score: m.uniform(band.min, band.max)})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	return CareerMatchResult{
		Matches:            matches,
		SuccessProbability: roundTo(m.uniform(0.7, 0.95), 2),
	}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
