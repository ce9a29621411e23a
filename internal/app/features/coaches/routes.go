// internal/app/features/coaches/routes.go
package coaches

import (
	"github.com/go-chi/chi/v5"

	"github.com/luminacoaching/lumina/internal/app/system/auth"
	"github.com/luminacoaching/lumina/internal/domain/models"
)

// Routes returns the roster admin subrouter, mounted under
// /api/admin/coaches. All routes require an admin portal session.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireRole(models.RoleAdmin))
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Put("/{coachID}", h.Update)
	r.Post("/{coachID}/archive", h.Archive)
	return r
}
