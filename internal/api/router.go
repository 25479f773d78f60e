package api

import (
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterConfig holds settings for the API router.
type RouterConfig struct {
	// BackendAPIKey is the key that must be provided in X-API-Key or Authorization: Bearer <key>.
	// If empty, auth middleware is skipped (development mode).
	BackendAPIKey string

	// CorsAllowedOrigins is a comma-separated list of allowed origins.
	// If empty, defaults to "*" (development mode).
	CorsAllowedOrigins string

	// RateLimitPerMinute and RateLimitBurst apply to provider-backed routes.
	RateLimitPerMinute int
	RateLimitBurst     int

	Logger *zap.Logger
}

func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	// Global middleware (applied to all routes including /health)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log.Named("http")))
	r.Use(middleware.Recoverer)

	allowedOrigins := []string{"*"}
	if cfg.CorsAllowedOrigins != "" {
		origins := strings.Split(cfg.CorsAllowedOrigins, ",")
		trimmed := make([]string, 0, len(origins))
		for _, o := range origins {
			if s := strings.TrimSpace(o); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			allowedOrigins = trimmed
		}
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check is public, no auth required
	r.Get("/health", h.Health)

	r.Route("/v1", func(r chi.Router) {
		if cfg.BackendAPIKey != "" {
			r.Use(APIKeyAuth(cfg.BackendAPIKey))
		}

		// Credentials
		r.Get("/credentials", h.GetCredentials)
		r.Post("/credentials/select", h.SelectCredential)

		// Sessions (one per mounted view)
		r.Post("/sessions", h.CreateSession)
		r.Delete("/sessions/{id}", h.DeleteSession)
		r.Get("/sessions/{id}/videos", h.GetVideo)
		r.Get("/sessions/{id}/chat", h.GetChat)
		r.Get("/sessions/{id}/generations", h.ListGenerations)

		r.Get("/presets/image-modifiers", h.ListImageModifierPresets)

		// Provider-backed routes
		r.Group(func(r chi.Router) {
			r.Use(RateLimit(cfg.RateLimitPerMinute, cfg.RateLimitBurst))

			r.Post("/images/generate", h.GenerateImage)
			r.Post("/images/edit", h.EditImage)
			r.Post("/sessions/{id}/videos", h.SubmitVideo)
			r.Get("/sessions/{id}/videos/content", h.GetVideoContent)
			r.Post("/sessions/{id}/chat", h.PostChat)
		})
	})

	return r
}
