// internal/app/features/engagements/handler.go

// Package engagements is the admin surface over engagement records: listing
// by organization, moving status, and canceling. Status changes ride the
// same optimistic version guard the selection transaction uses, so an admin
// acting on a stale view gets a conflict instead of clobbering a change.
package engagements

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	weberr "github.com/luminacoaching/lumina/internal/app/features/errors"
	engstore "github.com/luminacoaching/lumina/internal/app/store/engagements"
	"github.com/luminacoaching/lumina/internal/app/system/auditlog"
	"github.com/luminacoaching/lumina/internal/app/system/auth"
	"github.com/luminacoaching/lumina/internal/app/system/timeouts"
	"github.com/luminacoaching/lumina/internal/domain/models"
)

// adminStatuses are the transitions an admin may apply directly.
var adminStatuses = map[string]bool{
	models.StatusInProgress: true,
	models.StatusCompleted:  true,
	models.StatusOnHold:     true,
}

// Handler serves engagement administration.
type Handler struct {
	Engagements *engstore.Store
	Audit       *auditlog.Logger
	ErrLog      *weberr.Logger
	Log         *zap.Logger
}

// NewHandler constructs an engagements Handler.
func NewHandler(engs *engstore.Store, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Engagements: engs,
		Audit:       audit,
		ErrLog:      weberr.NewLogger(logger),
		Log:         logger,
	}
}

// entry is the admin-facing engagement view.
type entry struct {
	ID            string `json:"id"`
	ParticipantID string `json:"participant_id"`
	ProgramID     string `json:"program_id"`
	CohortID      string `json:"cohort_id"`
	CoachID       string `json:"coach_id,omitempty"`
	Status        string `json:"status"`
	StatusVersion int64  `json:"status_version"`
}

func toEntry(e models.Engagement) entry {
	out := entry{
		ID:            e.ID.Hex(),
		ParticipantID: e.ParticipantID.Hex(),
		ProgramID:     e.ProgramID.Hex(),
		CohortID:      e.CohortID.Hex(),
		Status:        e.Status,
		StatusVersion: e.StatusVersion,
	}
	if e.OrganizationCoachID != nil {
		out.CoachID = e.OrganizationCoachID.Hex()
	}
	return out
}

// List handles GET /api/admin/engagements?org=<id>[&cohort=<id>][&status=<s>].
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "engagement list")
	defer cancel()

	orgID, err := primitive.ObjectIDFromHex(r.URL.Query().Get("org"))
	if err != nil {
		weberr.BadRequest(w, "org is not a valid id")
		return
	}

	list, err := h.Engagements.ListByOrg(ctx, orgID)
	if err != nil {
		h.ErrLog.Internal(w, "engagement list", err)
		return
	}

	cohortFilter := r.URL.Query().Get("cohort")
	statusFilter := r.URL.Query().Get("status")

	entries := make([]entry, 0, len(list))
	for _, e := range list {
		if cohortFilter != "" && e.CohortID.Hex() != cohortFilter {
			continue
		}
		if statusFilter != "" && e.Status != statusFilter {
			continue
		}
		entries = append(entries, toEntry(e))
	}
	weberr.JSON(w, http.StatusOK, map[string]any{"engagements": entries})
}

type statusBody struct {
	Status        string `json:"status"`
	StatusVersion int64  `json:"status_version"`
}

// SetStatus handles POST /api/admin/engagements/{engagementID}/status.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "engagement status")
	defer cancel()

	actor, ok := auth.CurrentUser(r)
	if !ok {
		weberr.Unauthorized(w)
		return
	}

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "engagementID"))
	if err != nil {
		weberr.BadRequest(w, "engagement id is not valid")
		return
	}

	var body statusBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		weberr.BadRequest(w, "invalid JSON body")
		return
	}
	if !adminStatuses[body.Status] {
		weberr.BadRequest(w, "status must be in_progress, completed, or on_hold")
		return
	}

	if err := h.Engagements.UpdateStatus(ctx, id, body.StatusVersion, body.Status); err != nil {
		h.writeStatusError(w, err)
		return
	}

	actorID, _ := primitive.ObjectIDFromHex(actor.ID)
	h.Audit.EngagementUpdated(ctx, r, actorID, id, orgIDOf(actor), body.Status)
	weberr.JSON(w, http.StatusOK, map[string]string{"status": body.Status})
}

type cancelBody struct {
	StatusVersion int64 `json:"status_version"`
}

// Cancel handles POST /api/admin/engagements/{engagementID}/cancel. The
// coach reference stays on the record for history; only the status changes,
// which releases the capacity slot.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "engagement cancel")
	defer cancel()

	actor, ok := auth.CurrentUser(r)
	if !ok {
		weberr.Unauthorized(w)
		return
	}

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "engagementID"))
	if err != nil {
		weberr.BadRequest(w, "engagement id is not valid")
		return
	}

	var body cancelBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		weberr.BadRequest(w, "invalid JSON body")
		return
	}

	if err := h.Engagements.Cancel(ctx, id, body.StatusVersion); err != nil {
		h.writeStatusError(w, err)
		return
	}

	actorID, _ := primitive.ObjectIDFromHex(actor.ID)
	h.Audit.EngagementCanceled(ctx, r, actorID, id, orgIDOf(actor))
	weberr.JSON(w, http.StatusOK, map[string]string{"status": models.StatusCanceled})
}

func (h *Handler) writeStatusError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engstore.ErrNotFound):
		weberr.NotFound(w, "engagement not found")
	case errors.Is(err, engstore.ErrStaleVersion):
		weberr.Write(w, http.StatusConflict, weberr.CodeStaleVersion, "engagement changed since it was loaded")
	default:
		h.ErrLog.Internal(w, "engagement status change", err)
	}
}

func orgIDOf(actor *auth.SessionUser) *primitive.ObjectID {
	if actor.OrganizationID == "" {
		return nil
	}
	id, err := primitive.ObjectIDFromHex(actor.OrganizationID)
	if err != nil {
		return nil
	}
	return &id
}
