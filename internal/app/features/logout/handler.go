// internal/app/features/logout/handler.go

// Package logout signs the caller out of whichever session they hold. Portal
// and participant cookies are both cleared unconditionally, so a browser
// carrying stale copies of either ends up clean.
package logout

import (
	"net/http"

	"go.uber.org/zap"

	weberr "github.com/luminacoaching/lumina/internal/app/features/errors"
	"github.com/luminacoaching/lumina/internal/app/system/auditlog"
	"github.com/luminacoaching/lumina/internal/app/system/auth"
	"github.com/luminacoaching/lumina/internal/app/system/timeouts"
)

type Handler struct {
	Sessions *auth.SessionManager
	Audit    *auditlog.Logger
	Log      *zap.Logger
}

func NewHandler(sessions *auth.SessionManager, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Sessions: sessions,
		Audit:    audit,
		Log:      logger,
	}
}

// ServeLogout handles POST /api/auth/logout.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "logout")
	defer cancel()

	var userID, orgID string
	if u, ok := auth.CurrentUser(r); ok {
		userID = u.ID
		orgID = u.OrganizationID
	} else if ps, ok := h.Sessions.ParticipantSession(r); ok {
		userID = ps.ParticipantID
		orgID = ps.OrganizationID
	}

	if err := h.Sessions.ClearPortalSession(w, r); err != nil {
		// A corrupt portal cookie still gets overwritten with a deletion
		// cookie, so the sign-out holds either way.
		h.Log.Warn("clear portal session", zap.Error(err))
	}
	h.Sessions.ClearParticipantSession(w)

	if userID != "" {
		h.Audit.Logout(ctx, r, userID, orgID)
	}
	weberr.JSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
}
