package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/medqueue/backend/internal/domain/entities"
	"github.com/medqueue/backend/internal/domain/providers"
	"github.com/medqueue/backend/internal/domain/repositories"
)

// MetroCentre is a city centre used for directory lookups.
type MetroCentre struct {
	City     string
	Location entities.Location
}

// DefaultMetroCentres are searched when augmenting the roster from the directory.
var DefaultMetroCentres = []MetroCentre{
	{City: "Delhi", Location: entities.Location{Lat: 28.6139, Lng: 77.2090}},
	{City: "Mumbai", Location: entities.Location{Lat: 19.0760, Lng: 72.8777}},
	{City: "Bangalore", Location: entities.Location{Lat: 12.9716, Lng: 77.5946}},
	{City: "Chennai", Location: entities.Location{Lat: 13.0827, Lng: 80.2707}},
	{City: "Kolkata", Location: entities.Location{Lat: 22.5726, Lng: 88.3639}},
	{City: "Hyderabad", Location: entities.Location{Lat: 17.3850, Lng: 78.4867}},
}

const (
	defaultPlaceRating  = 4.0
	directoryTimeout    = 30 * time.Second
	cityLookupTimeout   = 10 * time.Second
	admitWaitPerPatient = 15
	admitBaseWait       = 10
)

// DirectoryOptions controls roster augmentation.
type DirectoryOptions struct {
	Directory    providers.HospitalDirectory
	Centres      []MetroCentre
	RadiusMeters int
	PerCity      int
}

// AdmitRequest carries the optional fields of a manual admission.
type AdmitRequest struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	DoctorType string `json:"doctorType"`
}

// HospitalService owns the hospital roster: initialization, reads, search and
// the two externally triggered queue mutations.
type HospitalService struct {
	store       repositories.HospitalRepository
	search      repositories.HospitalSearchRepository
	broadcaster Broadcaster
	stats       *StatsGenerator
	directory   *DirectoryOptions
	now         func() time.Time
}

// NewHospitalService creates a hospital service. search may be nil.
func NewHospitalService(
	store repositories.HospitalRepository,
	search repositories.HospitalSearchRepository,
	broadcaster Broadcaster,
	rng Generator,
) *HospitalService {
	return &HospitalService{
		store:       store,
		search:      search,
		broadcaster: broadcaster,
		stats:       NewStatsGenerator(rng),
		now:         time.Now,
	}
}

// WithDirectory enables roster augmentation from a hospital directory.
func (s *HospitalService) WithDirectory(opts DirectoryOptions) *HospitalService {
	if len(opts.Centres) == 0 {
		opts.Centres = DefaultMetroCentres
	}
	s.directory = &opts
	return s
}

// SetClock overrides the time source.
func (s *HospitalService) SetClock(now func() time.Time) {
	s.now = now
}

// Initialize seeds live state for every roster entry, adds directory results
// when a directory is configured, loads the store and indexes the result.
// Directory failures are logged and never fail initialization.
func (s *HospitalService) Initialize(ctx context.Context, roster []*entities.Hospital) error {
	known := make(map[string]struct{}, len(roster))
	bases := make([]*entities.Hospital, 0, len(roster))
	for _, h := range roster {
		known[h.ID] = struct{}{}
		bases = append(bases, h)
	}

	if s.directory != nil && s.directory.Directory != nil {
		added := s.lookupDirectory(ctx, known)
		bases = append(bases, added...)
		log.Info().Int("added", len(added)).Msg("hospital directory lookup finished")
	}

	now := s.now()
	hospitals := make([]*entities.Hospital, 0, len(bases))
	for _, b := range bases {
		hospitals = append(hospitals, s.stats.SeedHospital(b, now))
	}

	if err := s.store.Initialize(ctx, hospitals); err != nil {
		return err
	}

	if s.search != nil {
		if err := s.search.BulkIndex(ctx, hospitals); err != nil {
			log.Warn().Err(err).Msg("failed to index hospital roster")
		}
	}

	log.Info().Int("hospitals", len(hospitals)).Msg("hospital store initialized")
	return nil
}

func (s *HospitalService) lookupDirectory(ctx context.Context, known map[string]struct{}) []*entities.Hospital {
	opts := s.directory
	ctx, cancel := context.WithTimeout(ctx, directoryTimeout)
	defer cancel()

	perCity := make([][]providers.PlaceCandidate, len(opts.Centres))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	for i, centre := range opts.Centres {
		g.Go(func() error {
			cctx, ccancel := context.WithTimeout(gctx, cityLookupTimeout)
			defer ccancel()

			places, err := opts.Directory.NearbyHospitals(cctx, centre.Location, opts.RadiusMeters)
			if err != nil {
				log.Warn().Err(err).Str("city", centre.City).Msg("hospital directory lookup failed")
				return nil
			}
			if opts.PerCity > 0 && len(places) > opts.PerCity {
				places = places[:opts.PerCity]
			}
			mu.Lock()
			perCity[i] = places
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	var added []*entities.Hospital
	for i, places := range perCity {
		for _, p := range places {
			if p.PlaceID == "" {
				continue
			}
			if _, dup := known[p.PlaceID]; dup {
				continue
			}
			known[p.PlaceID] = struct{}{}

			rating := p.Rating
			if rating == 0 {
				rating = defaultPlaceRating
			}
			added = append(added, &entities.Hospital{
				ID:           p.PlaceID,
				Name:         p.Name,
				Address:      p.Vicinity,
				City:         opts.Centres[i].City,
				Type:         entities.HospitalTypeGeneral,
				Location:     p.Location,
				Rating:       rating,
				TotalRatings: p.TotalRatings,
				Queue:        []entities.Patient{},
			})
		}
	}
	return added
}

// Get returns the full live record.
func (s *HospitalService) Get(ctx context.Context, id string) (*entities.Hospital, error) {
	return s.store.Get(ctx, id)
}

// List returns every hospital.
func (s *HospitalService) List(ctx context.Context) ([]*entities.Hospital, error) {
	return s.store.List(ctx)
}

// Summaries returns the list-view projection of every hospital.
func (s *HospitalService) Summaries(ctx context.Context) ([]entities.HospitalSummary, error) {
	hospitals, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]entities.HospitalSummary, 0, len(hospitals))
	for _, h := range hospitals {
		out = append(out, h.Summary())
	}
	return out, nil
}

// Search ranks hospitals through the search index and returns live summaries
// in ranked order. Ids the store no longer knows are skipped.
func (s *HospitalService) Search(ctx context.Context, params repositories.HospitalSearchParams) ([]entities.HospitalSummary, error) {
	ids, err := s.search.Search(ctx, params)
	if err != nil {
		return nil, err
	}

	out := make([]entities.HospitalSummary, 0, len(ids))
	for _, id := range ids {
		h, err := s.store.Get(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, h.Summary())
	}
	return out, nil
}

// Count returns the number of hospitals.
func (s *HospitalService) Count(ctx context.Context) int {
	return s.store.Count(ctx)
}

// Admit appends a Regular patient to the tail of the hospital's queue and
// broadcasts the new state. Missing fields take placeholder values.
func (s *HospitalService) Admit(ctx context.Context, hospitalID string, req AdmitRequest) (*entities.Patient, error) {
	var patient entities.Patient
	updated, err := s.store.Update(ctx, hospitalID, func(h *entities.Hospital) error {
		n := len(h.Queue)
		patient = entities.Patient{
			Token:      s.stats.AdmitToken(n),
			Name:       orDefault(req.Name, "Emergency Patient"),
			Phone:      orDefault(req.Phone, PlaceholderPhone),
			Address:    orDefault(req.Address, "N/A"),
			DoctorType: orDefault(req.DoctorType, "General"),
			Wait:       n*admitWaitPerPatient + admitBaseWait,
			Priority:   entities.PriorityRegular,
			Color:      entities.PriorityRegular.Color(),
			Timestamp:  s.now(),
		}
		h.Queue = append(h.Queue, patient)
		h.RefreshQueueAnalytics()
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("hospital_id", hospitalID).Str("token", patient.Token).Msg("patient admitted")
	s.broadcast(ctx, updated)
	return &patient, nil
}

// CallIn removes the first queue entry with token (a leading "#" is ignored)
// and broadcasts the result. It reports whether an entry was removed; an
// unknown token leaves the queue unchanged and is not an error.
func (s *HospitalService) CallIn(ctx context.Context, hospitalID, token string) (bool, error) {
	var removed bool
	updated, err := s.store.Update(ctx, hospitalID, func(h *entities.Hospital) error {
		h.Queue, removed = entities.RemoveToken(h.Queue, token)
		if removed {
			h.RefreshQueueAnalytics()
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	log.Info().Str("hospital_id", hospitalID).Str("token", token).Bool("removed", removed).Msg("patient called in")
	s.broadcast(ctx, updated)
	return removed, nil
}

func (s *HospitalService) broadcast(ctx context.Context, h *entities.Hospital) {
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.Broadcast(ctx, h); err != nil {
		log.Warn().Err(err).Str("hospital_id", h.ID).Msg("failed to broadcast hospital update")
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
