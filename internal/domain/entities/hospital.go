package entities

import (
	"math"
	"slices"
	"time"
)

// HospitalType is the coarse category shown on the map.
type HospitalType string

const (
	HospitalTypeEmergency   HospitalType = "Emergency"
	HospitalTypeDiagnostics HospitalType = "Diagnostics"
	HospitalTypeGeneral     HospitalType = "General"
)

const (
	// QueueCapacity is the queue length that counts as 100% load.
	QueueCapacity = 20

	// SurgeThreshold is the queue length above which a hospital is flagged as surging.
	SurgeThreshold = 15
)

// Location is a WGS84 coordinate.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// BedSummary is the hospital-wide bed count. Build it with NewBedSummary so
// Available always equals Total - Occupied.
type BedSummary struct {
	Total     int `json:"total"`
	Occupied  int `json:"occupied"`
	Available int `json:"available"`
}

// NewBedSummary clamps occupied into [0, total] and derives Available.
func NewBedSummary(total, occupied int) BedSummary {
	if total < 0 {
		total = 0
	}
	occupied = max(0, min(occupied, total))
	return BedSummary{Total: total, Occupied: occupied, Available: total - occupied}
}

// Ward is one department's share of the bed summary.
type Ward struct {
	Name     string `json:"name"`
	Total    int    `json:"total"`
	Occupied int    `json:"occupied"`
}

type wardShare struct {
	name   string
	share  float64
	offset float64
}

// General Ward absorbs rounding, so it stays first.
var wardShares = []wardShare{
	{name: "General Ward", share: 0.40},
	{name: "ICU", share: 0.15, offset: 0.10},
	{name: "Emergency", share: 0.20},
	{name: "Pediatric", share: 0.15, offset: -0.10},
	{name: "Maternity", share: 0.10},
}

// DeriveWards splits beds across the fixed ward set so that ward totals sum to
// beds.Total and ward occupancy sums to beds.Occupied. ICU runs ten points
// hotter than the hospital average and Pediatric ten points cooler before the
// remainder is spread to wards with room.
func DeriveWards(beds BedSummary) []Ward {
	wards := make([]Ward, len(wardShares))
	allocated := 0
	for i, ws := range wardShares {
		wards[i] = Ward{Name: ws.name, Total: int(math.Floor(float64(beds.Total) * ws.share))}
		allocated += wards[i].Total
	}
	wards[0].Total += beds.Total - allocated

	rate := 0.0
	if beds.Total > 0 {
		rate = float64(beds.Occupied) / float64(beds.Total)
	}

	placed := 0
	for i, ws := range wardShares {
		r := math.Max(0, math.Min(1, rate+ws.offset))
		wards[i].Occupied = min(wards[i].Total, int(math.Floor(float64(wards[i].Total)*r)))
		placed += wards[i].Occupied
	}

	diff := beds.Occupied - placed
	for i := 0; diff > 0 && i < len(wards); i++ {
		add := min(diff, wards[i].Total-wards[i].Occupied)
		wards[i].Occupied += add
		diff -= add
	}
	for i := len(wards) - 1; diff < 0 && i >= 0; i-- {
		remove := min(-diff, wards[i].Occupied)
		wards[i].Occupied -= remove
		diff += remove
	}
	return wards
}

// Staffing is the on-duty roster for the current shift.
type Staffing struct {
	CurrentShift string `json:"currentShift"`
	OnDuty       int    `json:"onDuty"`
	Doctors      int    `json:"doctors"`
	Nurses       int    `json:"nurses"`
	Support      int    `json:"support"`
}

// NewStaffing splits onDuty 30/50/20 across doctors, nurses and support.
// Support takes the rounding remainder so the roles always add up.
func NewStaffing(shift string, onDuty int) Staffing {
	onDuty = max(0, onDuty)
	doctors := int(math.Floor(float64(onDuty) * 0.3))
	nurses := int(math.Floor(float64(onDuty) * 0.5))
	return Staffing{
		CurrentShift: shift,
		OnDuty:       onDuty,
		Doctors:      doctors,
		Nurses:       nurses,
		Support:      onDuty - doctors - nurses,
	}
}

// ShiftForHour maps an hour of day to the shift label.
func ShiftForHour(hour int) string {
	switch {
	case hour < 8:
		return "Night"
	case hour < 16:
		return "Morning"
	default:
		return "Evening"
	}
}

// TrendPoint is one day of the weekly trend.
type TrendPoint struct {
	Day      string `json:"day"`
	Patients int    `json:"patients"`
}

// PeakHour is one bucket of the peak-hour histogram.
type PeakHour struct {
	Hour  string `json:"hour"`
	Count int    `json:"count"`
}

// Analytics mixes live queue figures (AvgWaitTime, CurrentLoad, EmergencyRate)
// with descriptive figures that are refreshed independently.
type Analytics struct {
	AvgWaitTime      int          `json:"avgWaitTime"`
	DailyPatients    int          `json:"dailyPatients"`
	WeeklyTrend      []TrendPoint `json:"weeklyTrend"`
	PeakHours        []PeakHour   `json:"peakHours"`
	CurrentLoad      int          `json:"currentLoad"`
	SatisfactionRate int          `json:"satisfactionRate"`
	EmergencyRate    int          `json:"emergencyRate"`
}

// Hospital is the full live record for one institution.
type Hospital struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Address      string       `json:"address"`
	City         string       `json:"city"`
	Type         HospitalType `json:"type"`
	Location     Location     `json:"location"`
	Rating       float64      `json:"rating"`
	TotalRatings int          `json:"totalRatings"`
	Queue        []Patient    `json:"queue"`
	Beds         BedSummary   `json:"beds"`
	Wards        []Ward       `json:"wards"`
	Staffing     Staffing     `json:"staffing"`
	Analytics    Analytics    `json:"analytics"`
	LastUpdate   time.Time    `json:"lastUpdate"`
}

// Clone returns a deep copy; mutating it never touches the original.
func (h *Hospital) Clone() *Hospital {
	if h == nil {
		return nil
	}
	c := *h
	c.Queue = slices.Clone(h.Queue)
	c.Wards = slices.Clone(h.Wards)
	c.Analytics.WeeklyTrend = slices.Clone(h.Analytics.WeeklyTrend)
	c.Analytics.PeakHours = slices.Clone(h.Analytics.PeakHours)
	if c.Queue == nil {
		c.Queue = []Patient{}
	}
	return &c
}

// SetBeds replaces the bed summary and re-derives the ward breakdown from it.
func (h *Hospital) SetBeds(total, occupied int) {
	h.Beds = NewBedSummary(total, occupied)
	h.Wards = DeriveWards(h.Beds)
}

// RefreshQueueAnalytics recomputes the live analytics fields from the current queue.
func (h *Hospital) RefreshQueueAnalytics() {
	n := len(h.Queue)
	h.Analytics.CurrentLoad = n * 100 / QueueCapacity
	if n == 0 {
		h.Analytics.AvgWaitTime = 0
		h.Analytics.EmergencyRate = 0
		return
	}

	total, emergencies := 0, 0
	for _, p := range h.Queue {
		total += p.Wait
		if p.Priority == PriorityEmergency {
			emergencies++
		}
	}
	h.Analytics.AvgWaitTime = total / n
	h.Analytics.EmergencyRate = emergencies * 100 / n
}

// SurgeDetected reports whether the queue is longer than SurgeThreshold.
func (h *Hospital) SurgeDetected() bool {
	return len(h.Queue) > SurgeThreshold
}

// HospitalSummary is the list-view projection of a hospital.
type HospitalSummary struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Address       string       `json:"address"`
	City          string       `json:"city"`
	Location      Location     `json:"location"`
	Rating        float64      `json:"rating"`
	TotalRatings  int          `json:"totalRatings"`
	CurrentQueue  int          `json:"currentQueue"`
	AvailableBeds int          `json:"availableBeds"`
	AvgWaitTime   int          `json:"avgWaitTime"`
	Type          HospitalType `json:"type"`
	SurgeDetected bool         `json:"surge_detected"`
}

// Summary projects the hospital for list responses.
func (h *Hospital) Summary() HospitalSummary {
	t := h.Type
	if t == "" {
		t = HospitalTypeGeneral
	}
	return HospitalSummary{
		ID:            h.ID,
		Name:          h.Name,
		Address:       h.Address,
		City:          h.City,
		Location:      h.Location,
		Rating:        h.Rating,
		TotalRatings:  h.TotalRatings,
		CurrentQueue:  len(h.Queue),
		AvailableBeds: h.Beds.Available,
		AvgWaitTime:   h.Analytics.AvgWaitTime,
		Type:          t,
		SurgeDetected: h.SurgeDetected(),
	}
}
