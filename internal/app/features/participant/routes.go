// internal/app/features/participant/routes.go
package participant

import "github.com/go-chi/chi/v5"

// Routes returns the participant auth subrouter, mounted under
// /api/participant.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/request-code", h.RequestCode)
	r.Post("/verify-code", h.VerifyCode)
	return r
}
