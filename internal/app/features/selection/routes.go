// internal/app/features/selection/routes.go
package selection

import "github.com/go-chi/chi/v5"

// Routes returns the selection subrouter, mounted under /api/selection.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/context", h.Context)
	r.Post("/batch", h.Batch)
	r.Post("/remix", h.Remix)
	r.Post("/select", h.Select)
	return r
}
