// Package seed holds the roster of known institutions loaded at startup.
package seed

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/medqueue/backend/internal/domain/entities"
)

//go:embed roster.yaml
var defaultRoster []byte

// Entry is one institution in the roster file.
type Entry struct {
	ID           string                `yaml:"id"`
	Name         string                `yaml:"name"`
	Address      string                `yaml:"address"`
	City         string                `yaml:"city"`
	Type         entities.HospitalType `yaml:"type"`
	Location     entities.Location     `yaml:"location"`
	Rating       float64               `yaml:"rating"`
	TotalRatings int                   `yaml:"totalRatings"`
}

// Roster is the decoded roster file.
type Roster struct {
	Hospitals []Entry `yaml:"hospitals"`
}

// Load reads the roster at path, or the embedded default when path is empty.
func Load(path string) ([]*entities.Hospital, error) {
	content := defaultRoster
	if path != "" {
		b, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("failed to read roster %s: %w", path, err)
		}
		content = b
	}
	return Parse(content)
}

// Parse decodes roster YAML. Entries need an id and a name; ids must be unique.
func Parse(content []byte) ([]*entities.Hospital, error) {
	var roster Roster
	if err := yaml.Unmarshal(content, &roster); err != nil {
		return nil, fmt.Errorf("failed to parse roster: %w", err)
	}
	if len(roster.Hospitals) == 0 {
		return nil, fmt.Errorf("roster is empty")
	}

	seen := make(map[string]struct{}, len(roster.Hospitals))
	hospitals := make([]*entities.Hospital, 0, len(roster.Hospitals))
	for i, e := range roster.Hospitals {
		if e.ID == "" || e.Name == "" {
			return nil, fmt.Errorf("roster entry %d: id and name are required", i)
		}
		if _, dup := seen[e.ID]; dup {
			return nil, fmt.Errorf("roster entry %d: duplicate id %q", i, e.ID)
		}
		seen[e.ID] = struct{}{}

		hospitals = append(hospitals, &entities.Hospital{
			ID:           e.ID,
			Name:         e.Name,
			Address:      e.Address,
			City:         e.City,
			Type:         e.Type,
			Location:     e.Location,
			Rating:       e.Rating,
			TotalRatings: e.TotalRatings,
			Queue:        []entities.Patient{},
		})
	}
	return hospitals, nil
}
