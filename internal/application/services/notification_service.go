package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/medqueue/backend/internal/domain/providers"
	apperrors "github.com/medqueue/backend/pkg/errors"
)

// MockMessagePrefix marks references returned when the SMS gateway was not reached.
const MockMessagePrefix = "mock-"

// EmergencyAlert is the body of an emergency notification.
type EmergencyAlert struct {
	PhoneNumber string `json:"phoneNumber"`
	Location    string `json:"location"`
	AlertType   string `json:"alertType"`
}

// BookingNotice is the body of a booking confirmation.
type BookingNotice struct {
	PhoneNumber  string `json:"phoneNumber"`
	HospitalName string `json:"hospitalName"`
	Time         string `json:"time"`
	HospitalID   string `json:"hospitalId"`
}

// NotificationService renders and sends SMS notifications.
//
// Direct sends surface gateway failures. Templated notifications (emergency,
// booking, otp) never fail: when the gateway is missing or errors, a mock
// reference is returned instead of the gateway message id.
type NotificationService struct {
	sender providers.SMSSender
	rng    Generator
}

// NewNotificationService creates a notification service. sender may be nil
// when no SMS gateway is configured.
func NewNotificationService(sender providers.SMSSender, rng Generator) *NotificationService {
	return &NotificationService{sender: sender, rng: rng}
}

// Send delivers message to the recipient and returns the gateway message id.
func (n *NotificationService) Send(ctx context.Context, to, message string) (string, error) {
	if n.sender == nil {
		return "", apperrors.NewUpstreamUnavailableError("Notification service", nil)
	}
	sid, err := n.sender.Send(ctx, to, message)
	if err != nil {
		log.Error().Err(err).Str("to", to).Msg("sms send failed")
		return "", apperrors.NewUpstreamUnavailableError("Notification service", err)
	}
	return sid, nil
}

// EmergencyMessage renders the emergency alert text.
func EmergencyMessage(alert EmergencyAlert) string {
	return fmt.Sprintf("EMERGENCY: %s reported at %s. Assistance required immediately.", alert.AlertType, alert.Location)
}

// BookingMessage renders the booking confirmation text with a display token.
func BookingMessage(notice BookingNotice, token int) string {
	return fmt.Sprintf("Booking Confirmed: Your appointment at %s is scheduled for %s. Token: #MED-%d.", notice.HospitalName, notice.Time, token)
}

// OTPMessage renders the verification code text.
func OTPMessage(otp string) string {
	return fmt.Sprintf("Your MedQueue verification code is: %s. Do not share this code.", otp)
}

// NotifyEmergency sends an emergency alert.
func (n *NotificationService) NotifyEmergency(ctx context.Context, alert EmergencyAlert) string {
	sid := n.sendOrMock(ctx, "emergency", alert.PhoneNumber, EmergencyMessage(alert))
	log.Warn().Str("alert_type", alert.AlertType).Str("location", alert.Location).Str("sid", sid).Msg("emergency alert triggered")
	return sid
}

// NotifyBooking sends a booking confirmation.
func (n *NotificationService) NotifyBooking(ctx context.Context, notice BookingNotice) string {
	return n.sendOrMock(ctx, "booking", notice.PhoneNumber, BookingMessage(notice, n.rng.IntN(1000)))
}

// NotifyOTP sends a verification code.
func (n *NotificationService) NotifyOTP(ctx context.Context, phone, otp string) string {
	return n.sendOrMock(ctx, "otp", phone, OTPMessage(otp))
}

func (n *NotificationService) sendOrMock(ctx context.Context, kind, to, message string) string {
	if n.sender != nil {
		sid, err := n.sender.Send(ctx, to, message)
		if err == nil {
			return sid
		}
		log.Warn().Err(err).Str("kind", kind).Msg("sms gateway failed, returning mock reference")
	}
	return MockMessagePrefix + uuid.NewString()
}
