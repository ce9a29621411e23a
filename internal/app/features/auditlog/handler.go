// internal/app/features/auditlog/handler.go

// Package auditlog is the admin surface over the audit trail. It is
// read-only; events are written by the system/auditlog logger.
package auditlog

import (
	"net/http"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	weberr "github.com/luminacoaching/lumina/internal/app/features/errors"
	"github.com/luminacoaching/lumina/internal/app/store/audit"
	"github.com/luminacoaching/lumina/internal/app/system/timeouts"
)

const maxPageSize = 200

// Handler serves audit event queries.
type Handler struct {
	Events *audit.Store
	ErrLog *weberr.Logger
	Log    *zap.Logger
}

// NewHandler constructs an auditlog Handler.
func NewHandler(events *audit.Store, logger *zap.Logger) *Handler {
	return &Handler{
		Events: events,
		ErrLog: weberr.NewLogger(logger),
		Log:    logger,
	}
}

// entry is the admin-facing audit event view.
type entry struct {
	ID             string            `json:"id"`
	Timestamp      time.Time         `json:"timestamp"`
	Category       string            `json:"category"`
	EventType      string            `json:"event_type"`
	OrganizationID string            `json:"organization_id,omitempty"`
	UserID         string            `json:"user_id,omitempty"`
	ActorID        string            `json:"actor_id,omitempty"`
	IP             string            `json:"ip"`
	Success        bool              `json:"success"`
	FailureReason  string            `json:"failure_reason,omitempty"`
	Details        map[string]string `json:"details,omitempty"`
}

func toEntry(e audit.Event) entry {
	out := entry{
		ID:            e.ID.Hex(),
		Timestamp:     e.Timestamp,
		Category:      e.Category,
		EventType:     e.EventType,
		IP:            e.IP,
		Success:       e.Success,
		FailureReason: e.FailureReason,
		Details:       e.Details,
	}
	if e.OrganizationID != nil {
		out.OrganizationID = e.OrganizationID.Hex()
	}
	if e.UserID != nil {
		out.UserID = e.UserID.Hex()
	}
	if e.ActorID != nil {
		out.ActorID = e.ActorID.Hex()
	}
	return out
}

// List handles GET /api/admin/audit. Query parameters: org, user, category,
// event_type, since (RFC 3339), until (RFC 3339), limit, offset.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "audit list")
	defer cancel()

	filter, err := filterFromQuery(r)
	if err != nil {
		weberr.BadRequest(w, err.Error())
		return
	}

	events, err := h.Events.Query(ctx, filter)
	if err != nil {
		h.ErrLog.Internal(w, "audit list", err)
		return
	}
	total, err := h.Events.CountByFilter(ctx, filter)
	if err != nil {
		h.ErrLog.Internal(w, "audit count", err)
		return
	}

	entries := make([]entry, 0, len(events))
	for _, e := range events {
		entries = append(entries, toEntry(e))
	}
	weberr.JSON(w, http.StatusOK, map[string]any{
		"events": entries,
		"total":  total,
	})
}

func filterFromQuery(r *http.Request) (audit.QueryFilter, error) {
	q := r.URL.Query()
	filter := audit.QueryFilter{
		Category:  q.Get("category"),
		EventType: q.Get("event_type"),
	}

	if v := q.Get("org"); v != "" {
		id, err := primitive.ObjectIDFromHex(v)
		if err != nil {
			return filter, errBadParam("org")
		}
		filter.OrganizationID = &id
	}
	if v := q.Get("user"); v != "" {
		id, err := primitive.ObjectIDFromHex(v)
		if err != nil {
			return filter, errBadParam("user")
		}
		filter.UserID = &id
	}
	if v := q.Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errBadParam("since")
		}
		filter.StartTime = &ts
	}
	if v := q.Get("until"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errBadParam("until")
		}
		filter.EndTime = &ts
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			return filter, errBadParam("limit")
		}
		if n > maxPageSize {
			n = maxPageSize
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return filter, errBadParam("offset")
		}
		filter.Offset = n
	}
	return filter, nil
}

type badParamError string

func errBadParam(name string) error { return badParamError(name) }

func (e badParamError) Error() string { return string(e) + " is not valid" }
