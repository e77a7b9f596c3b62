package handlers

import (
	"net/http"
	"strings"

	"github.com/medqueue/backend/internal/application/services"
	"github.com/medqueue/backend/internal/infrastructure/observability"
)

// NotificationHandler handles SMS notification requests
type NotificationHandler struct {
	service *services.NotificationService
	metrics *observability.Metrics
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(service *services.NotificationService, metrics *observability.Metrics) *NotificationHandler {
	return &NotificationHandler{service: service, metrics: metrics}
}

type sendNotificationRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type otpRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	OTP         string `json:"otp"`
}

// SendNotification handles POST /api/send-notification. Gateway failures
// are reported as 500.
func (h *NotificationHandler) SendNotification(w http.ResponseWriter, r *http.Request) {
	var req sendNotificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, err)
		return
	}

	sid, err := h.service.Send(r.Context(), req.To, req.Message)
	if err != nil {
		respondWithAppError(w, err)
		return
	}
	h.respondSent(w, r, sid)
}

// NotifyEmergency handles POST /api/notify/emergency
func (h *NotificationHandler) NotifyEmergency(w http.ResponseWriter, r *http.Request) {
	var req services.EmergencyAlert
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, err)
		return
	}
	h.respondSent(w, r, h.service.NotifyEmergency(r.Context(), req))
}

// NotifyBooking handles POST /api/notify/booking
func (h *NotificationHandler) NotifyBooking(w http.ResponseWriter, r *http.Request) {
	var req services.BookingNotice
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, err)
		return
	}
	h.respondSent(w, r, h.service.NotifyBooking(r.Context(), req))
}

// NotifyOTP handles POST /api/notify/otp
func (h *NotificationHandler) NotifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithAppError(w, err)
		return
	}
	h.respondSent(w, r, h.service.NotifyOTP(r.Context(), req.PhoneNumber, req.OTP))
}

func (h *NotificationHandler) respondSent(w http.ResponseWriter, r *http.Request, sid string) {
	if strings.HasPrefix(sid, services.MockMessagePrefix) {
		observability.RecordFallback(r.Context(), h.metrics, "twilio")
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"messageSid": sid,
	})
}
