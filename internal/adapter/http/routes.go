package http

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Post("/getPath", h.GetPath)
	r.Get("/tasks/status/{task_id}", h.TaskStatus)
	r.Post("/explore", h.ExplorePage)
	r.Post("/cache/clear", h.CacheClear)
	r.Get("/health", h.Health)
}
