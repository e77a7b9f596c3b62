package mlcore

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Handler exposes the models over HTTP.
type Handler struct {
	models *Models
}

// NewHandler creates a model handler.
func NewHandler(models *Models) *Handler {
	return &Handler{models: models}
}

// Routes registers the model endpoints on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.Status)
	mux.HandleFunc("POST /predict/wait-time", h.WaitTime)
	mux.HandleFunc("POST /predict/career-match", h.CareerMatch)
	return mux
}

// Status handles GET /
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ML service is online",
		"models": ModelNames,
	})
}

type queueDataRequest struct {
	CurrentLength    *int     `json:"current_length"`
	AvgConsultTime   *float64 `json:"avg_consult_time"`
	DoctorsAvailable *int     `json:"doctors_available"`
	HourOfDay        *int     `json:"hour_of_day"`
}

// WaitTime handles POST /predict/wait-time
func (h *Handler) WaitTime(w http.ResponseWriter, r *http.Request) {
	var req queueDataRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var missing validationErrors
	missing.require(req.CurrentLength != nil, "current_length")
	missing.require(req.AvgConsultTime != nil, "avg_consult_time")
	missing.require(req.DoctorsAvailable != nil, "doctors_available")
	missing.require(req.HourOfDay != nil, "hour_of_day")
	if len(missing) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": missing})
		return
	}

	estimate := h.models.PredictWaitTime(QueueData{
		CurrentLength:    *req.CurrentLength,
		AvgConsultTime:   *req.AvgConsultTime,
		DoctorsAvailable: *req.DoctorsAvailable,
		HourOfDay:        *req.HourOfDay,
	})
	log.Debug().
		Int("current_length", *req.CurrentLength).
		Float64("estimated_wait_minutes", estimate.EstimatedWaitMinutes).
		Msg("wait time predicted")
	writeJSON(w, http.StatusOK, estimate)
}

// CareerMatch handles POST /predict/career-match
func (h *Handler) CareerMatch(w http.ResponseWriter, r *http.Request) {
	var profile CareerProfile
	if !decodeBody(w, r, &profile) {
		return
	}

	var missing validationErrors
	missing.require(profile.AptitudeScores != nil, "aptitude_scores")
	missing.require(profile.Interests != nil, "interests")
	missing.require(profile.Skills != nil, "skills")
	if len(missing) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": missing})
		return
	}

	writeJSON(w, http.StatusOK, h.models.PredictCareerMatch(profile))
}

// fieldError mirrors the validation detail shape clients of the service
// already parse.
type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

type validationErrors []fieldError

func (v *validationErrors) require(present bool, field string) {
	if !present {
		*v = append(*v, fieldError{Loc: []string{"body", field}, Msg: "field required", Type: "value_error.missing"})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []fieldError{{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error.jsondecode"}},
		})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
