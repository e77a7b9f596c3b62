package entities

import (
	"time"

	"github.com/google/uuid"
)

// HospitalEventType names the realtime event sent to clients.
type HospitalEventType string

const (
	// HospitalEventUpdate is broadcast to every client after a mutation.
	HospitalEventUpdate HospitalEventType = "hospital-update"

	// HospitalEventSnapshot answers a subscribe request.
	HospitalEventSnapshot HospitalEventType = "hospital-data"
)

// HospitalEvent carries a post-mutation hospital state over the event bus.
type HospitalEvent struct {
	ID         string            `json:"id"`
	HospitalID string            `json:"hospitalId"`
	EventType  HospitalEventType `json:"eventType"`
	Timestamp  time.Time         `json:"timestamp"`
	Hospital   *Hospital         `json:"data"`
}

// NewHospitalEvent wraps a copy of hospital in an update event.
func NewHospitalEvent(hospital *Hospital) *HospitalEvent {
	return &HospitalEvent{
		ID:         uuid.NewString(),
		HospitalID: hospital.ID,
		EventType:  HospitalEventUpdate,
		Timestamp:  time.Now().UTC(),
		Hospital:   hospital.Clone(),
	}
}
