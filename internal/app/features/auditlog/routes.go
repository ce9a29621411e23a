// internal/app/features/auditlog/routes.go
package auditlog

import (
	"github.com/go-chi/chi/v5"

	"github.com/luminacoaching/lumina/internal/app/system/auth"
	"github.com/luminacoaching/lumina/internal/domain/models"
)

// Routes returns the audit admin subrouter, mounted under /api/admin/audit.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireRole(models.RoleAdmin))
	r.Get("/", h.List)
	return r
}
