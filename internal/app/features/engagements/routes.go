// internal/app/features/engagements/routes.go
package engagements

import (
	"github.com/go-chi/chi/v5"

	"github.com/luminacoaching/lumina/internal/app/system/auth"
	"github.com/luminacoaching/lumina/internal/domain/models"
)

// Routes returns the engagement admin subrouter, mounted under
// /api/admin/engagements. All routes require an admin portal session.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireRole(models.RoleAdmin))
	r.Get("/", h.List)
	r.Post("/{engagementID}/status", h.SetStatus)
	r.Post("/{engagementID}/cancel", h.Cancel)
	return r
}
