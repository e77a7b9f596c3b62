package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/medqueue/backend/internal/application/services"
	"github.com/medqueue/backend/internal/domain/entities"
	"github.com/medqueue/backend/internal/domain/repositories"
	apperrors "github.com/medqueue/backend/pkg/errors"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

// HospitalHandler handles hospital and queue HTTP requests
type HospitalHandler struct {
	service *services.HospitalService
}

// NewHospitalHandler creates a new hospital handler
func NewHospitalHandler(service *services.HospitalService) *HospitalHandler {
	return &HospitalHandler{service: service}
}

// ListHospitals handles GET /api/hospitals
func (h *HospitalHandler) ListHospitals(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.Summaries(r.Context())
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, summaries)
}

// SearchHospitals handles GET /api/hospitals/search
func (h *HospitalHandler) SearchHospitals(w http.ResponseWriter, r *http.Request) {
	params, err := parseSearchParams(r)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	summaries, err := h.service.Search(r.Context(), params)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"hospitals": summaries,
		"count":     len(summaries),
	})
}

func parseSearchParams(r *http.Request) (repositories.HospitalSearchParams, error) {
	q := r.URL.Query()
	params := repositories.HospitalSearchParams{
		Query: strings.TrimSpace(q.Get("q")),
		City:  strings.TrimSpace(q.Get("city")),
		Type:  entities.HospitalType(strings.TrimSpace(q.Get("type"))),
		Limit: defaultSearchLimit,
	}

	latRaw, lngRaw := q.Get("lat"), q.Get("lng")
	if latRaw != "" || lngRaw != "" {
		lat, err := strconv.ParseFloat(latRaw, 64)
		if err != nil || lat < -90 || lat > 90 {
			return params, apperrors.NewValidationError("invalid lat parameter")
		}
		lng, err := strconv.ParseFloat(lngRaw, 64)
		if err != nil || lng < -180 || lng > 180 {
			return params, apperrors.NewValidationError("invalid lng parameter")
		}
		params.Near = &entities.Location{Lat: lat, Lng: lng}
	}

	if raw := q.Get("radius_km"); raw != "" {
		radius, err := strconv.ParseFloat(raw, 64)
		if err != nil || radius <= 0 {
			return params, apperrors.NewValidationError("invalid radius_km parameter")
		}
		if params.Near == nil {
			return params, apperrors.NewValidationError("invalid radius_km parameter: lat and lng are required")
		}
		params.RadiusKm = radius
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return params, apperrors.NewValidationError("invalid limit parameter")
		}
		params.Limit = min(limit, maxSearchLimit)
	}

	return params, nil
}

// GetHospital handles GET /api/hospitals/{id}
func (h *HospitalHandler) GetHospital(w http.ResponseWriter, r *http.Request) {
	hospital, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, hospital)
}

// GetQueue handles GET /api/hospitals/{id}/queue
func (h *HospitalHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	hospital, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, hospital.Queue)
}

// GetWards handles GET /api/hospitals/{id}/wards
func (h *HospitalHandler) GetWards(w http.ResponseWriter, r *http.Request) {
	hospital, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"wards":   hospital.Wards,
		"summary": hospital.Beds,
	})
}

// GetStaffing handles GET /api/hospitals/{id}/staffing
func (h *HospitalHandler) GetStaffing(w http.ResponseWriter, r *http.Request) {
	hospital, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, hospital.Staffing)
}

// GetAnalytics handles GET /api/hospitals/{id}/analytics
func (h *HospitalHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	hospital, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, hospital.Analytics)
}

// AdmitPatient handles POST /api/hospitals/{id}/admit
func (h *HospitalHandler) AdmitPatient(w http.ResponseWriter, r *http.Request) {
	var req services.AdmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, err)
		return
	}

	patient, err := h.service.Admit(r.Context(), r.PathValue("id"), req)
	if err != nil {
		h.respondWithHospitalError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"patient": patient,
	})
}

type callInRequest struct {
	HospitalID string `json:"hospitalId"`
	Token      string `json:"token"`
}

// CallIn handles POST /api/queue/call-in
func (h *HospitalHandler) CallIn(w http.ResponseWriter, r *http.Request) {
	var req callInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, err)
		return
	}

	removed, err := h.service.CallIn(r.Context(), req.HospitalID, req.Token)
	if err != nil {
		h.respondWithHospitalError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{
		"success": true,
		"removed": removed,
	})
}

func (h *HospitalHandler) lookup(w http.ResponseWriter, r *http.Request) (*entities.Hospital, bool) {
	hospital, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondWithHospitalError(w, err)
		return nil, false
	}
	return hospital, true
}

func (h *HospitalHandler) respondWithHospitalError(w http.ResponseWriter, err error) {
	if apperrors.IsNotFound(err) {
		respondWithError(w, http.StatusNotFound, "Hospital not found")
		return
	}
	respondWithAppError(w, err)
}
