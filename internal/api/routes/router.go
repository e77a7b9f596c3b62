package routes

import (
	"net/http"

	"github.com/medqueue/backend/internal/api/handlers"
	"github.com/medqueue/backend/internal/api/middleware"
	"github.com/medqueue/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	hospitalHandler     *handlers.HospitalHandler
	assistantHandler    *handlers.AssistantHandler
	notificationHandler *handlers.NotificationHandler
	realtimeHandler     *handlers.RealtimeHandler
	diagnosticsHandler  *handlers.DiagnosticsHandler

	cacheMiddleware *middleware.CacheMiddleware
	allowedOrigins  []string
	metrics         *observability.Metrics
}

// Options carries the router's handlers and middleware dependencies.
// CacheMiddleware and Metrics may be nil.
type Options struct {
	Hospitals       *handlers.HospitalHandler
	Assistant       *handlers.AssistantHandler
	Notifications   *handlers.NotificationHandler
	Realtime        *handlers.RealtimeHandler
	Diagnostics     *handlers.DiagnosticsHandler
	CacheMiddleware *middleware.CacheMiddleware
	AllowedOrigins  []string
	Metrics         *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(opts Options) *Router {
	return &Router{
		mux:                 http.NewServeMux(),
		hospitalHandler:     opts.Hospitals,
		assistantHandler:    opts.Assistant,
		notificationHandler: opts.Notifications,
		realtimeHandler:     opts.Realtime,
		diagnosticsHandler:  opts.Diagnostics,
		cacheMiddleware:     opts.CacheMiddleware,
		allowedOrigins:      opts.AllowedOrigins,
		metrics:             opts.Metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", r.diagnosticsHandler.Liveness)
	r.mux.HandleFunc("GET /api/health", r.diagnosticsHandler.Health)
	r.mux.HandleFunc("POST /api/debug-log", r.diagnosticsHandler.DebugLog)

	// Hospitals
	r.mux.HandleFunc("GET /api/hospitals", r.hospitalHandler.ListHospitals)
	r.mux.HandleFunc("GET /api/hospitals/search", r.hospitalHandler.SearchHospitals)
	r.mux.HandleFunc("GET /api/hospitals/{id}", r.hospitalHandler.GetHospital)
	r.mux.HandleFunc("GET /api/hospitals/{id}/queue", r.hospitalHandler.GetQueue)
	r.mux.HandleFunc("GET /api/hospitals/{id}/wards", r.hospitalHandler.GetWards)
	r.mux.HandleFunc("GET /api/hospitals/{id}/staffing", r.hospitalHandler.GetStaffing)
	r.mux.HandleFunc("GET /api/hospitals/{id}/analytics", r.hospitalHandler.GetAnalytics)
	r.mux.HandleFunc("POST /api/hospitals/{id}/admit", r.hospitalHandler.AdmitPatient)
	r.mux.HandleFunc("POST /api/queue/call-in", r.hospitalHandler.CallIn)

	// Assistant
	r.mux.HandleFunc("POST /api/chat", r.assistantHandler.Chat)
	r.mux.HandleFunc("POST /api/predict-wait-time", r.assistantHandler.PredictWaitTime)
	r.mux.HandleFunc("POST /api/predict-career", r.assistantHandler.PredictCareer)

	// Notifications
	r.mux.HandleFunc("POST /api/send-notification", r.notificationHandler.SendNotification)
	r.mux.HandleFunc("POST /api/notify/emergency", r.notificationHandler.NotifyEmergency)
	r.mux.HandleFunc("POST /api/notify/booking", r.notificationHandler.NotifyBooking)
	r.mux.HandleFunc("POST /api/notify/otp", r.notificationHandler.NotifyOTP)

	// Realtime
	r.mux.HandleFunc("GET /api/ws", r.realtimeHandler.ServeWebSocket)
	r.mux.HandleFunc("GET /api/stream/hospitals/{id}", r.realtimeHandler.StreamHospital)

	var handler http.Handler = r.mux
	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}
	handler = middleware.ResponseOptimization(handler)
	handler = middleware.CORS(r.allowedOrigins)(handler)
	handler = middleware.Logging(handler)
	handler = middleware.Observability(r.metrics)(handler)

	return handler
}
