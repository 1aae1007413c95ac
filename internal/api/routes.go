package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/gridworks/citygen/internal/viewer"
)

func SetupRoutes(handler *Handler, viewerManager *viewer.Manager, hub *Hub) *chi.Mux {
	r := chi.NewRouter()

	// Setup middleware
	for _, middleware := range SetupMiddleware() {
		r.Use(middleware)
	}

	// JSON content type
	r.Use(render.SetContentType(render.ContentTypeJSON))

	// Health check endpoint
	r.Get("/health", handler.HealthCheck)

	// Visibility event stream
	r.Get("/ws/visibility", hub.HandleWS)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public chunk routes (no authentication required)
		r.Get("/chunks/{x}/{z}", handler.GetChunkSummary)
		r.Get("/chunks/{x}/{z}/cells", handler.GetChunkCells)
		r.Get("/chunks/{x}/{z}/roads", handler.GetChunkRoads)
		r.Get("/chunks/{x}/{z}/footprints", handler.GetChunkFootprints)
		r.Get("/chunks/{x}/{z}/snapshot", handler.GetChunkSnapshot)
		r.Get("/generation-log", handler.GetGenerationLogs)

		// Viewer registration (no auth required)
		r.Post("/viewers", handler.RegisterViewer)

		// Protected viewer routes (session token required)
		r.With(viewer.AuthMiddleware(viewerManager)).Group(func(r chi.Router) {
			r.Post("/viewers/position", handler.UpdatePosition)
		})
	})

	return r
}
