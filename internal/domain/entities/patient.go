package entities

import (
	"sort"
	"strings"
	"time"
)

// Priority is the triage class of a queued patient.
type Priority string

const (
	PriorityEmergency Priority = "Emergency"
	PriorityUrgent    Priority = "Urgent"
	PriorityRegular   Priority = "Regular"
)

// Rank orders priorities for the queue: Emergency first. Unknown values sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityEmergency:
		return 0
	case PriorityUrgent:
		return 1
	case PriorityRegular:
		return 2
	default:
		return 3
	}
}

// Color is the display tag the frontends render for a priority.
func (p Priority) Color() string {
	switch p {
	case PriorityEmergency:
		return "red"
	case PriorityUrgent:
		return "orange"
	default:
		return "green"
	}
}

// Patient is one entry in a hospital queue.
type Patient struct {
	Token      string    `json:"token"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	Address    string    `json:"address,omitempty"`
	DoctorType string    `json:"doctorType,omitempty"`
	Wait       int       `json:"wait"`
	Priority   Priority  `json:"priority"`
	Color      string    `json:"color"`
	Timestamp  time.Time `json:"timestamp"`
}

// SortQueue stable-sorts the queue by priority, keeping arrival order within a class.
func SortQueue(queue []Patient) {
	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].Priority.Rank() < queue[j].Priority.Rank()
	})
}

// QueueSorted reports whether no entry precedes one of a more urgent class.
func QueueSorted(queue []Patient) bool {
	for i := 1; i < len(queue); i++ {
		if queue[i-1].Priority.Rank() > queue[i].Priority.Rank() {
			return false
		}
	}
	return true
}

// NormalizeToken strips whitespace and the "#" the frontends print before tokens.
func NormalizeToken(token string) string {
	return strings.TrimPrefix(strings.TrimSpace(token), "#")
}

// RemoveToken removes the first entry whose token matches and reports whether one did.
func RemoveToken(queue []Patient, token string) ([]Patient, bool) {
	token = NormalizeToken(token)
	if token == "" {
		return queue, false
	}
	for i := range queue {
		if queue[i].Token == token {
			return append(queue[:i:i], queue[i+1:]...), true
		}
	}
	return queue, false
}
