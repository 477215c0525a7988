package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hackgods/neuro-rehab-portal/internal/session"
)

type RouterConfig struct {
	Controller  *session.Controller
	Sinks       map[string]Pinger
	Logger      *zap.Logger
	CORSOrigins []string
	Env         string
	Version     string
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	// Health endpoints
	health := NewHealthHandler(cfg.Sinks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	ctrl := cfg.Controller

	r.Route("/session", func(r chi.Router) {
		r.Get("/", getSessionHandler(ctrl))
		r.Post("/login", loginHandler(ctrl))
		r.Post("/logout", logoutHandler(ctrl))
	})

	r.Route("/clinician", func(r chi.Router) {
		r.Get("/overview", overviewHandler(ctrl))
		r.Post("/section", navigateHandler(ctrl))
		r.Get("/patients", listPatientsHandler(ctrl))
		r.Post("/patients/{id}/select", selectPatientHandler(ctrl))
		r.Get("/selection", getSelectionHandler(ctrl))
		r.Delete("/selection", clearSelectionHandler(ctrl))
		r.Get("/appointments", listAppointmentsHandler(ctrl))
		r.Post("/appointments/{seq}/confirm", confirmAppointmentHandler(ctrl))
	})

	r.Route("/patient", func(r chi.Router) {
		r.Get("/tasks", tasksHandler(ctrl))
		r.Post("/tasks/{id}/capture", startCaptureHandler(ctrl))
		r.Post("/lens", openLensHandler(ctrl))
		r.Get("/capture", captureStatusHandler(ctrl))
		r.Post("/capture/finish", finishCaptureHandler(ctrl))
		r.Post("/capture/cancel", cancelCaptureHandler(ctrl))
		r.Get("/chat", transcriptHandler(ctrl))
		r.Post("/chat", sendMessageHandler(ctrl))
		r.Post("/appointments", requestAppointmentHandler(ctrl))
	})

	return r
}
