// internal/app/features/coaches/handler.go

// Package coaches is the admin surface for the coach roster: listing a
// pool with live load, adding coaches, editing capacity and profile, and
// archiving. Bios are sanitized on the way in, so everything stored is
// safe to render.
package coaches

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	weberr "github.com/luminacoaching/lumina/internal/app/features/errors"
	"github.com/luminacoaching/lumina/internal/app/store/orgcoaches"
	userstore "github.com/luminacoaching/lumina/internal/app/store/users"
	"github.com/luminacoaching/lumina/internal/app/system/auditlog"
	"github.com/luminacoaching/lumina/internal/app/system/auth"
	"github.com/luminacoaching/lumina/internal/app/system/htmlsanitize"
	"github.com/luminacoaching/lumina/internal/app/system/timeouts"
	"github.com/luminacoaching/lumina/internal/domain/models"
)

// Handler serves coach roster administration.
type Handler struct {
	Coaches *orgcoaches.Store
	Users   *userstore.Store
	Audit   *auditlog.Logger
	ErrLog  *weberr.Logger
	Log     *zap.Logger
}

// NewHandler constructs a coaches Handler.
func NewHandler(coaches *orgcoaches.Store, users *userstore.Store, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Coaches: coaches,
		Users:   users,
		Audit:   audit,
		ErrLog:  weberr.NewLogger(logger),
		Log:     logger,
	}
}

// rosterEntry is the admin-facing coach view, including live load.
type rosterEntry struct {
	ID                string   `json:"id"`
	UserID            string   `json:"user_id"`
	DisplayName       string   `json:"display_name"`
	Bio               string   `json:"bio,omitempty"`
	BookingLink       string   `json:"booking_link,omitempty"`
	Pools             []string `json:"pools"`
	MaxEngagements    int      `json:"max_engagements"`
	ActiveEngagements int      `json:"active_engagements"`
	Active            bool     `json:"active"`
	Archived          bool     `json:"archived,omitempty"`
}

func toRosterEntry(c models.CoachLoad) rosterEntry {
	return rosterEntry{
		ID:                c.ID.Hex(),
		UserID:            c.UserID.Hex(),
		DisplayName:       c.DisplayName,
		Bio:               c.Bio,
		BookingLink:       c.BookingLink,
		Pools:             c.Pools,
		MaxEngagements:    c.MaxEngagements,
		ActiveEngagements: c.ActiveEngagements,
		Active:            c.Active,
		Archived:          c.Archived,
	}
}

// List handles GET /api/admin/coaches?org=<id>[&pool=<tag>]. With a pool it
// returns the eligible pool; without, the whole roster including inactive
// and archived coaches.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "coach roster list")
	defer cancel()

	orgID, err := primitive.ObjectIDFromHex(r.URL.Query().Get("org"))
	if err != nil {
		weberr.BadRequest(w, "org is not a valid id")
		return
	}

	var list []models.CoachLoad
	if pool := r.URL.Query().Get("pool"); pool != "" {
		list, err = h.Coaches.ListPool(ctx, orgID, pool)
	} else {
		list, err = h.Coaches.ListByOrg(ctx, orgID)
	}
	if err != nil {
		h.ErrLog.Internal(w, "coach roster list", err)
		return
	}

	entries := make([]rosterEntry, 0, len(list))
	for _, c := range list {
		entries = append(entries, toRosterEntry(c))
	}
	weberr.JSON(w, http.StatusOK, map[string]any{"coaches": entries})
}

type createBody struct {
	OrganizationID string   `json:"organization_id"`
	UserID         string   `json:"user_id"`
	DisplayName    string   `json:"display_name"`
	Bio            string   `json:"bio"`
	BookingLink    string   `json:"booking_link"`
	Pools          []string `json:"pools"`
	MaxEngagements int      `json:"max_engagements"`
}

// Create handles POST /api/admin/coaches.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "coach create")
	defer cancel()

	actor, ok := auth.CurrentUser(r)
	if !ok {
		weberr.Unauthorized(w)
		return
	}

	var body createBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		weberr.BadRequest(w, "invalid JSON body")
		return
	}
	orgID, err := primitive.ObjectIDFromHex(body.OrganizationID)
	if err != nil {
		weberr.BadRequest(w, "organization_id is not a valid id")
		return
	}
	userID, err := primitive.ObjectIDFromHex(body.UserID)
	if err != nil {
		weberr.BadRequest(w, "user_id is not a valid id")
		return
	}
	if strings.TrimSpace(body.DisplayName) == "" {
		weberr.BadRequest(w, "display_name is required")
		return
	}
	if len(body.Pools) == 0 {
		weberr.BadRequest(w, "at least one pool is required")
		return
	}

	// The roster entry must point at an existing coach user.
	coachUser, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			weberr.BadRequest(w, "user_id does not exist")
			return
		}
		h.ErrLog.Internal(w, "coach user lookup", err)
		return
	}
	if coachUser.Role != models.RoleCoach {
		weberr.BadRequest(w, "user is not a coach")
		return
	}

	oc, err := h.Coaches.Create(ctx, models.OrganizationCoach{
		UserID:         userID,
		OrganizationID: orgID,
		DisplayName:    strings.TrimSpace(body.DisplayName),
		Bio:            htmlsanitize.Sanitize(body.Bio),
		BookingLink:    strings.TrimSpace(body.BookingLink),
		Pools:          body.Pools,
		MaxEngagements: body.MaxEngagements,
		Active:         true,
	})
	if err != nil {
		h.ErrLog.Internal(w, "coach create", err)
		return
	}

	actorID, _ := primitive.ObjectIDFromHex(actor.ID)
	h.Audit.CoachCreated(ctx, r, actorID, oc.ID, &orgID, oc.DisplayName)
	weberr.JSON(w, http.StatusCreated, toRosterEntry(models.CoachLoad{OrganizationCoach: oc}))
}

type updateBody struct {
	DisplayName    string   `json:"display_name"`
	Bio            string   `json:"bio"`
	BookingLink    string   `json:"booking_link"`
	Pools          []string `json:"pools"`
	MaxEngagements int      `json:"max_engagements"`
	Active         bool     `json:"active"`
}

// Update handles PUT /api/admin/coaches/{coachID}. Lowering max_engagements
// below the current load is allowed; existing engagements are never broken,
// the coach just stops being selectable.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "coach update")
	defer cancel()

	actor, ok := auth.CurrentUser(r)
	if !ok {
		weberr.Unauthorized(w)
		return
	}

	coachID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "coachID"))
	if err != nil {
		weberr.BadRequest(w, "coach id is not valid")
		return
	}

	var body updateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		weberr.BadRequest(w, "invalid JSON body")
		return
	}
	if len(body.Pools) == 0 {
		weberr.BadRequest(w, "at least one pool is required")
		return
	}

	err = h.Coaches.UpdateProfile(ctx, coachID,
		strings.TrimSpace(body.DisplayName),
		htmlsanitize.Sanitize(body.Bio),
		strings.TrimSpace(body.BookingLink),
		body.Pools,
		body.MaxEngagements,
		body.Active,
	)
	if err != nil {
		if errors.Is(err, orgcoaches.ErrNotFound) {
			weberr.NotFound(w, "coach not found")
			return
		}
		h.ErrLog.Internal(w, "coach update", err)
		return
	}

	oc, err := h.Coaches.GetByID(ctx, coachID)
	if err != nil {
		h.ErrLog.Internal(w, "coach reload", err)
		return
	}

	actorID, _ := primitive.ObjectIDFromHex(actor.ID)
	h.Audit.CoachUpdated(ctx, r, actorID, coachID, &oc.OrganizationID, "profile")
	weberr.JSON(w, http.StatusOK, toRosterEntry(models.CoachLoad{OrganizationCoach: oc}))
}

// Archive handles POST /api/admin/coaches/{coachID}/archive. An archived
// coach disappears from pools and stops counting anywhere, but history
// keeps pointing at the record.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "coach archive")
	defer cancel()

	actor, ok := auth.CurrentUser(r)
	if !ok {
		weberr.Unauthorized(w)
		return
	}

	coachID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "coachID"))
	if err != nil {
		weberr.BadRequest(w, "coach id is not valid")
		return
	}

	oc, err := h.Coaches.GetByID(ctx, coachID)
	if err != nil {
		if errors.Is(err, orgcoaches.ErrNotFound) {
			weberr.NotFound(w, "coach not found")
			return
		}
		h.ErrLog.Internal(w, "coach lookup", err)
		return
	}

	if err := h.Coaches.Archive(ctx, coachID); err != nil {
		h.ErrLog.Internal(w, "coach archive", err)
		return
	}

	actorID, _ := primitive.ObjectIDFromHex(actor.ID)
	h.Audit.CoachArchived(ctx, r, actorID, coachID, &oc.OrganizationID)
	weberr.JSON(w, http.StatusOK, map[string]string{"status": "archived"})
}
