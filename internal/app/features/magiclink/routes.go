// internal/app/features/magiclink/routes.go
package magiclink

import "github.com/go-chi/chi/v5"

// Routes returns the magic-link subrouter, mounted under
// /api/auth/magic-link.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/request", h.Request)
	r.Get("/redeem", h.Redeem)
	return r
}
