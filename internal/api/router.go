package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/vodgrabba/internal/api/handler"
	mw "github.com/iconidentify/vodgrabba/internal/api/middleware"
)

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(
	downloadHandler *handler.DownloadHandler,
	authTokenHandler *handler.AuthTokenHandler,
	healthHandler *handler.HealthHandler,
	apiKey string,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.CleanPath) // Normalize paths (e.g., //ready -> /ready)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger(logger))
	r.Use(mw.Recovery(logger))
	r.Use(middleware.Timeout(time.Minute))

	// Health endpoints (no auth)
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(apiKey))

		r.Get("/stats", healthHandler.Stats)

		// Downloads run on the worker pool; submission returns immediately.
		r.Post("/downloads", downloadHandler.Submit)
		r.Get("/downloads", downloadHandler.List)
		r.Get("/downloads/{jobID}", downloadHandler.Get)

		r.Get("/auth/token", authTokenHandler.Get)
		r.Put("/auth/token", authTokenHandler.Put)
		r.Delete("/auth/token", authTokenHandler.Delete)
	})

	return r
}
