package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/medqueue/backend/internal/adapters/events"
	"github.com/medqueue/backend/internal/adapters/memory"
	"github.com/medqueue/backend/internal/adapters/search"
	"github.com/medqueue/backend/internal/api/handlers"
	"github.com/medqueue/backend/internal/api/routes"
	"github.com/medqueue/backend/internal/application/services"
	"github.com/medqueue/backend/internal/domain/entities"
	"github.com/medqueue/backend/internal/domain/providers"
)

var arrival = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

// testEnv wires the full API over an in-memory store holding two hospitals:
// apollo-delhi with queue [TK-12001 emergency, TK-12002 regular] and an
// empty fortis-mumbai.
type testEnv struct {
	store     *memory.HospitalStore
	hub       *services.RealtimeHub
	hospitals *services.HospitalService
	realtime  *handlers.RealtimeHandler
	handler   http.Handler
}

type upstreams struct {
	chat      providers.ChatProvider
	predictor providers.PredictionProvider
	sms       providers.SMSSender
}

func newTestEnv(t *testing.T, up upstreams) *testEnv {
	t.Helper()

	store := memory.NewHospitalStore()
	require.NoError(t, store.Initialize(context.Background(), fixtureHospitals()))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := services.NewRealtimeHub(store, events.NewMemoryEventBus(16), 16)
	require.NoError(t, hub.Start(ctx))

	rng := services.NewSeededGenerator(7)
	hospitals := services.NewHospitalService(store, search.NewMemorySearch(store), hub, rng)
	realtime := handlers.NewRealtimeHandler(hub, hospitals, nil, []string{"*"})

	router := routes.NewRouter(routes.Options{
		Hospitals:     handlers.NewHospitalHandler(hospitals),
		Assistant:     handlers.NewAssistantHandler(services.NewAssistantService(up.chat, up.predictor), nil),
		Notifications: handlers.NewNotificationHandler(services.NewNotificationService(up.sms, rng), nil),
		Realtime:      realtime,
		Diagnostics:   handlers.NewDiagnosticsHandler(hospitals, realtime),
	})

	return &testEnv{
		store:     store,
		hub:       hub,
		hospitals: hospitals,
		realtime:  realtime,
		handler:   router.SetupRoutes(),
	}
}

func fixtureHospitals() []*entities.Hospital {
	apollo := &entities.Hospital{
		ID: "apollo-delhi", Name: "Apollo Hospital", Address: "Sarita Vihar", City: "Delhi",
		Type: entities.HospitalTypeEmergency, Location: entities.Location{Lat: 28.5355, Lng: 77.2789},
		Rating: 4.4, TotalRatings: 1200,
		Queue: []entities.Patient{
			{Token: "TK-12001", Name: "Rahul Sharma", Phone: "+910000000001", Wait: 10, Priority: entities.PriorityEmergency, Color: "red", Timestamp: arrival},
			{Token: "TK-12002", Name: "Priya Patel", Phone: "+910000000002", Wait: 25, Priority: entities.PriorityRegular, Color: "green", Timestamp: arrival},
		},
		Staffing: entities.NewStaffing("Morning", 160),
	}
	apollo.SetBeds(200, 150)
	apollo.RefreshQueueAnalytics()

	fortis := &entities.Hospital{
		ID: "fortis-mumbai", Name: "Fortis Hospital", Address: "Mulund West", City: "Mumbai",
		Type: entities.HospitalTypeGeneral, Location: entities.Location{Lat: 19.1636, Lng: 72.9423},
		Rating: 4.1,
	}
	fortis.SetBeds(120, 90)

	return []*entities.Hospital{apollo, fortis}
}

func (e *testEnv) do(t *testing.T, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.doRequest(req)
}

func (e *testEnv) doRequest(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type MockChatProvider struct {
	mock.Mock
}

func (m *MockChatProvider) Complete(ctx context.Context, req providers.ChatRequest) (*providers.ChatMessage, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.ChatMessage), args.Error(1)
}

type MockPredictionProvider struct {
	mock.Mock
}

func (m *MockPredictionProvider) PredictWaitTime(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	args := m.Called(ctx, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

func (m *MockPredictionProvider) PredictCareerMatch(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	args := m.Called(ctx, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

type MockSMSSender struct {
	mock.Mock
}

func (m *MockSMSSender) Send(ctx context.Context, to, body string) (string, error) {
	args := m.Called(ctx, to, body)
	return args.String(0), args.Error(1)
}
