package handlers_test

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/medqueue/backend/internal/application/services"
)

type sentResponse struct {
	Success    bool   `json:"success"`
	MessageSid string `json:"messageSid"`
}

func TestNotificationHandler_SendNotification(t *testing.T) {
	t.Run("delivered", func(t *testing.T) {
		sms := new(MockSMSSender)
		sms.On("Send", mock.Anything, "+919811111111", "Your turn is next").Return("SM123", nil)

		env := newTestEnv(t, upstreams{sms: sms})
		w := env.do(t, http.MethodPost, "/api/send-notification", `{"to":"+919811111111","message":"Your turn is next"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, sentResponse{Success: true, MessageSid: "SM123"}, decode[sentResponse](t, w))
		sms.AssertExpectations(t)
	})

	t.Run("gateway failure is a 500", func(t *testing.T) {
		sms := new(MockSMSSender)
		sms.On("Send", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("21211"))

		env := newTestEnv(t, upstreams{sms: sms})
		w := env.do(t, http.MethodPost, "/api/send-notification", `{"to":"bad","message":"hi"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, map[string]string{"error": "Notification service unavailable"}, decode[map[string]string](t, w))
	})

	t.Run("no gateway configured", func(t *testing.T) {
		env := newTestEnv(t, upstreams{})
		w := env.do(t, http.MethodPost, "/api/send-notification", `{"to":"+91","message":"hi"}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestNotificationHandler_TemplatedMessages(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
		to   string
		text func(string) bool
	}{
		{
			name: "emergency",
			path: "/api/notify/emergency",
			body: `{"phoneNumber":"+919800000001","location":"Sector 21","alertType":"Cardiac arrest"}`,
			to:   "+919800000001",
			text: func(s string) bool {
				return s == "EMERGENCY: Cardiac arrest reported at Sector 21. Assistance required immediately."
			},
		},
		{
			name: "booking",
			path: "/api/notify/booking",
			body: `{"phoneNumber":"+919800000002","hospitalName":"Apollo Hospital","time":"10:30 AM","hospitalId":"apollo-delhi"}`,
			to:   "+919800000002",
			text: func(s string) bool {
				return strings.HasPrefix(s, "Booking Confirmed: Your appointment at Apollo Hospital is scheduled for 10:30 AM. Token: #MED-")
			},
		},
		{
			name: "otp",
			path: "/api/notify/otp",
			body: `{"phoneNumber":"+919800000003","otp":"4821"}`,
			to:   "+919800000003",
			text: func(s string) bool {
				return s == "Your MedQueue verification code is: 4821. Do not share this code."
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name+" delivered", func(t *testing.T) {
			sms := new(MockSMSSender)
			sms.On("Send", mock.Anything, tt.to, mock.MatchedBy(tt.text)).Return("SM-"+tt.name, nil)

			env := newTestEnv(t, upstreams{sms: sms})
			w := env.do(t, http.MethodPost, tt.path, tt.body)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, sentResponse{Success: true, MessageSid: "SM-" + tt.name}, decode[sentResponse](t, w))
			sms.AssertExpectations(t)
		})

		t.Run(tt.name+" gateway failure returns a mock reference", func(t *testing.T) {
			sms := new(MockSMSSender)
			sms.On("Send", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("unreachable"))

			env := newTestEnv(t, upstreams{sms: sms})
			w := env.do(t, http.MethodPost, tt.path, tt.body)
			require.Equal(t, http.StatusOK, w.Code)

			resp := decode[sentResponse](t, w)
			assert.True(t, resp.Success)
			assert.True(t, strings.HasPrefix(resp.MessageSid, services.MockMessagePrefix))
		})
	}
}
