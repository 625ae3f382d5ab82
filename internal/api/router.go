package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iconidentify/dsconvert/internal/api/handler"
	mw "github.com/iconidentify/dsconvert/internal/api/middleware"
)

// NewRouter creates the HTTP router with all routes configured. Both the
// HTTP and HTTPS listeners serve it.
//
// No request timeout is applied; /convert holds the request open until
// ffmpeg finishes.
func NewRouter(
	videoHandler *handler.VideoHandler,
	mediaHandler *handler.MediaHandler,
	healthHandler *handler.HealthHandler,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics(mw.DefaultMetricsConfig()))

	// Health and metrics
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	// Pages, GET only
	r.Get("/", videoHandler.Home)
	r.Get("/convert", videoHandler.Convert)
	r.Get("/video/{id}", videoHandler.Player)
	r.Get("/delete/{id}", videoHandler.Delete)
	r.Get("/delete-all", videoHandler.DeleteAll)

	// Media
	r.Group(func(r chi.Router) {
		r.Use(mw.MediaCORS)
		r.Get("/videos/{filename}", mediaHandler.Serve)
		r.Head("/videos/{filename}", mediaHandler.Serve)
		r.Options("/videos/{filename}", mediaHandler.Serve)
	})

	// JSON API
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/videos", videoHandler.List)
		r.Get("/stats", healthHandler.Stats)
	})

	return r
}
