package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterConfig carries everything NewRouter wires together.
type RouterConfig struct {
	Handler *Handler
	// Metrics serves GET /metrics; nil leaves the route out.
	Metrics http.Handler
	// Recorder receives request metrics; may be nil.
	Recorder HTTPRecorder
	// SignupLimiter limits POST /events/{id}/signups; may be nil.
	SignupLimiter *RateLimiter
	// AdminToken guards /admin; empty disables the admin routes.
	AdminToken        string
	CORSAllowedOrigin string
}

// NewRouter builds the chi router for the service.
func NewRouter(cfg RouterConfig) http.Handler {
	h := cfg.Handler
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(Logger(cfg.Recorder))
	r.Use(chimiddleware.Recoverer)
	r.Use(SecurityHeaders)
	if cfg.CORSAllowedOrigin != "" {
		r.Use(CORS(cfg.CORSAllowedOrigin))
	}

	r.Get("/health", HealthCheck)
	r.Get("/ready", h.Ready)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListOpenEvents)
		r.Get("/{id}", h.GetEvent)
		r.Group(func(r chi.Router) {
			if cfg.SignupLimiter != nil {
				r.Use(cfg.SignupLimiter.Middleware)
			}
			r.Post("/{id}/signups", h.SubmitSignup)
		})
	})

	if cfg.AdminToken != "" {
		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminAuth(cfg.AdminToken))
			r.Get("/events", h.ListEvents)
			r.Post("/events", h.CreateEvent)
			r.Post("/events/import", h.ImportEvents)
			r.Patch("/events/{id}", h.UpdateEvent)
			r.Get("/events/{id}/signups", h.ListSignups)
			r.Post("/events/{id}/signups/{signupID}/approve", h.ApproveSignup)
			r.Post("/events/{id}/signups/{signupID}/reject", h.RejectSignup)
		})
	}

	return r
}
