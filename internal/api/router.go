package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/vidgrab/internal/api/handler"
	mw "github.com/iconidentify/vidgrab/internal/api/middleware"
)

// RouterConfig holds router settings.
type RouterConfig struct {
	// PathPrefix is the mount point of the API, e.g. "/api". Empty mounts
	// the API at the root.
	PathPrefix string

	// APIKey enables key authentication on the API routes when set.
	APIKey string

	// RequestTimeout bounds request lifetime. Zero means 10 minutes.
	RequestTimeout time.Duration
}

// Handlers groups the HTTP handlers mounted by the router. Static may be
// nil to disable bundled media.
type Handlers struct {
	Video  *handler.VideoHandler
	Events *handler.EventHandler
	Auth   *handler.AuthHandler
	Static *handler.StaticHandler
	Health *handler.HealthHandler
}

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(cfg RouterConfig, h Handlers) *chi.Mux {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Minute
	}

	r := chi.NewRouter()

	r.Use(middleware.CleanPath)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(mw.CORS)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Health endpoints (no auth)
	r.Get("/health", h.Health.Live)
	r.Get("/ready", h.Health.Ready)

	api := func(r chi.Router) {
		if cfg.APIKey != "" {
			r.Use(mw.APIKeyAuth(cfg.APIKey))
		}

		r.Get("/stats", h.Health.Stats)

		r.Post("/video/info", h.Video.Info)
		r.Post("/video/download", h.Video.Download)
		r.Get("/video/file/{filename}", h.Video.File)
		r.Get("/video/stream/{filename}", h.Video.Stream)
		r.Get("/video/supported-sites", h.Video.SupportedSites)
		r.Get("/video/artifacts", h.Video.Artifacts)
		r.Get("/video/artifacts/{jobID}", h.Video.Artifact)
		r.Get("/video/events", h.Events.Stream)
		r.Get("/video/events/recent", h.Events.Recent)
		r.Get("/video/auth/status", h.Auth.Status)

		if h.Static != nil {
			r.Get("/videos/{filename}", h.Static.Serve)
		}
	}

	if cfg.PathPrefix == "" {
		r.Group(api)
	} else {
		r.Route(cfg.PathPrefix, api)
	}

	return r
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
