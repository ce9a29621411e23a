// internal/app/features/selection/handler.go

// Package selection serves the participant-facing coach selection API:
// showing a batch of candidate coaches, the single remix, the selection
// itself, and the session context the client renders from. Every endpoint
// requires a valid participant session cookie and rebuilds the server-side
// view from the database; nothing in the cookie is trusted beyond ids.
package selection

import (
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	weberr "github.com/luminacoaching/lumina/internal/app/features/errors"
	"github.com/luminacoaching/lumina/internal/app/store/engagements"
	"github.com/luminacoaching/lumina/internal/app/store/orgcoaches"
	"github.com/luminacoaching/lumina/internal/app/system/auditlog"
	"github.com/luminacoaching/lumina/internal/app/system/auth"
	"github.com/luminacoaching/lumina/internal/app/system/coachpool"
	"github.com/luminacoaching/lumina/internal/app/system/sessionctx"
	"github.com/luminacoaching/lumina/internal/app/system/timeouts"
	"github.com/luminacoaching/lumina/internal/domain/models"
)

// DefaultBatchSize is how many coaches a batch shows when not configured.
const DefaultBatchSize = 3

// Handler serves the selection API.
type Handler struct {
	Sessions    *auth.SessionManager
	Ctx         *sessionctx.Loader
	Coaches     *orgcoaches.Store
	Engagements *engagements.Store
	Audit       *auditlog.Logger
	ErrLog      *weberr.Logger
	Log         *zap.Logger
	BatchSize   int

	// newRNG is swappable for deterministic tests.
	newRNG func() *rand.Rand
}

// NewHandler constructs a selection Handler.
func NewHandler(
	sessions *auth.SessionManager,
	loader *sessionctx.Loader,
	coaches *orgcoaches.Store,
	engs *engagements.Store,
	audit *auditlog.Logger,
	logger *zap.Logger,
	batchSize int,
) *Handler {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Handler{
		Sessions:    sessions,
		Ctx:         loader,
		Coaches:     coaches,
		Engagements: engs,
		Audit:       audit,
		ErrLog:      weberr.NewLogger(logger),
		Log:         logger,
		BatchSize:   batchSize,
		newRNG: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
}

// session resolves the participant cookie plus its object ids, or writes a
// 401 and returns ok=false.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*models.ParticipantSession, sessionIDs, bool) {
	ps, ok := h.Sessions.ParticipantSession(r)
	if !ok {
		weberr.Write(w, http.StatusUnauthorized, weberr.CodeInvalidSession, "participant session missing or expired")
		return nil, sessionIDs{}, false
	}
	ids, err := parseSessionIDs(ps)
	if err != nil {
		weberr.Write(w, http.StatusUnauthorized, weberr.CodeInvalidSession, "participant session malformed")
		return nil, sessionIDs{}, false
	}
	return ps, ids, true
}

type sessionIDs struct {
	participant primitive.ObjectID
	engagement  primitive.ObjectID
	org         primitive.ObjectID
}

func parseSessionIDs(ps *models.ParticipantSession) (sessionIDs, error) {
	pid, err := primitive.ObjectIDFromHex(ps.ParticipantID)
	if err != nil {
		return sessionIDs{}, err
	}
	eid, err := primitive.ObjectIDFromHex(ps.EngagementID)
	if err != nil {
		return sessionIDs{}, err
	}
	oid, err := primitive.ObjectIDFromHex(ps.OrganizationID)
	if err != nil {
		return sessionIDs{}, err
	}
	return sessionIDs{participant: pid, engagement: eid, org: oid}, nil
}

// coachView is the client-facing shape of a candidate coach. Capacity and
// load never leave the server.
type coachView struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio,omitempty"`
}

func toCoachViews(coaches []models.CoachLoad) []coachView {
	out := make([]coachView, 0, len(coaches))
	for _, c := range coaches {
		out = append(out, coachView{ID: c.ID.Hex(), DisplayName: c.DisplayName, Bio: c.Bio})
	}
	return out
}

type batchResponse struct {
	Coaches       []coachView `json:"coaches"`
	PoolExhausted bool        `json:"pool_exhausted"`
	AllAtCapacity bool        `json:"all_at_capacity"`
	RemixUsed     bool        `json:"remix_used"`
}

// allAtCapacity reports whether the pool has coaches but none with a free
// slot. Distinct from an empty pool and from poolExhausted, which signals
// repeated coaches.
func allAtCapacity(pool []models.CoachLoad) bool {
	if len(pool) == 0 {
		return false
	}
	for _, c := range pool {
		if !c.AtCapacity() {
			return false
		}
	}
	return true
}

// Batch handles POST /api/selection/batch. The first call draws a batch;
// repeated calls return the same batch until remix or selection, so the
// client can safely re-render.
func (h *Handler) Batch(w http.ResponseWriter, r *http.Request) {
	h.serveBatch(w, r, false)
}

// Remix handles POST /api/selection/remix. Each participant gets exactly one
// remix per session; the latch never resets.
func (h *Handler) Remix(w http.ResponseWriter, r *http.Request) {
	h.serveBatch(w, r, true)
}

func (h *Handler) serveBatch(w http.ResponseWriter, r *http.Request, remix bool) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "selection batch")
	defer cancel()

	ps, ids, ok := h.session(w, r)
	if !ok {
		return
	}

	sc, err := h.Ctx.Load(ctx, ids.engagement, ids.participant, ids.org)
	if err != nil {
		if errors.Is(err, sessionctx.ErrNotFound) {
			weberr.Write(w, http.StatusUnauthorized, weberr.CodeInvalidSession, "engagement not found")
			return
		}
		h.ErrLog.Internal(w, "session context load", err)
		return
	}

	if sc.Engagement.Status == models.StatusCoachSelected {
		weberr.Write(w, http.StatusConflict, weberr.CodeAlreadySelected, "a coach has already been selected")
		return
	}
	if sc.Engagement.Status != models.StatusInvited {
		weberr.Write(w, http.StatusUnauthorized, weberr.CodeInvalidSession, "engagement is not open for selection")
		return
	}
	if !sc.SelectionOpen {
		weberr.Write(w, http.StatusConflict, weberr.CodeWindowClosed, "the selection window is closed")
		return
	}
	if remix && ps.RemixUsed {
		weberr.Write(w, http.StatusConflict, weberr.CodeRemixAlreadyUsed, "the remix has already been used")
		return
	}

	pool, err := h.Coaches.ListPool(ctx, ids.org, sc.Program.Pool)
	if err != nil {
		h.ErrLog.Internal(w, "pool load", err)
		return
	}

	full := allAtCapacity(pool)

	// A repeated batch call re-renders the pinned batch instead of drawing
	// a new one.
	if !remix && len(ps.CurrentBatchIDs) > 0 {
		if current, ok := resolveBatch(pool, ps.CurrentBatchIDs); ok {
			weberr.JSON(w, http.StatusOK, batchResponse{
				Coaches:       toCoachViews(current),
				AllAtCapacity: full,
				RemixUsed:     ps.RemixUsed,
			})
			return
		}
		// Someone in the pinned batch filled up or was archived; fall
		// through and draw a replacement batch.
	}

	shown := make(map[string]bool, len(ps.ShownCoachIDs))
	for _, id := range ps.ShownCoachIDs {
		shown[id] = true
	}

	batch := coachpool.PickBatch(pool, shown, h.BatchSize, h.newRNG())

	ps.CurrentBatchIDs = ps.CurrentBatchIDs[:0]
	for _, c := range batch.Selected {
		id := c.ID.Hex()
		ps.CurrentBatchIDs = append(ps.CurrentBatchIDs, id)
		if !shown[id] {
			ps.ShownCoachIDs = append(ps.ShownCoachIDs, id)
		}
	}
	if remix {
		ps.RemixUsed = true
	}
	if err := h.Sessions.WriteParticipantSession(w, ps); err != nil {
		h.ErrLog.Internal(w, "participant session write", err)
		return
	}

	h.Audit.BatchShown(ctx, r, ids.participant, &ids.org, ps.EngagementID,
		len(batch.Selected), len(ps.ShownCoachIDs), remix)

	weberr.JSON(w, http.StatusOK, batchResponse{
		Coaches:       toCoachViews(batch.Selected),
		PoolExhausted: batch.PoolExhausted,
		AllAtCapacity: full,
		RemixUsed:     ps.RemixUsed,
	})
}

// resolveBatch maps the pinned batch ids back onto the live pool. It fails
// when any pinned coach is no longer selectable.
func resolveBatch(pool []models.CoachLoad, ids []string) ([]models.CoachLoad, bool) {
	byID := make(map[string]models.CoachLoad, len(pool))
	for _, c := range pool {
		if !c.AtCapacity() {
			byID[c.ID.Hex()] = c
		}
	}
	out := make([]models.CoachLoad, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, false
		}
		out = append(out, c)
	}
	return out, true
}

type selectBody struct {
	CoachID string `json:"coach_id"`
}

type selectResponse struct {
	Outcome string     `json:"outcome"`
	Coach   *coachView `json:"coach,omitempty"`
	Booking string     `json:"booking_link,omitempty"`
}

// Select handles POST /api/selection/select. The store transaction makes the
// decision; this handler only translates the outcome onto the wire. The
// session's shown-coach history is never touched by a failed attempt.
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "coach selection")
	defer cancel()

	ps, ids, ok := h.session(w, r)
	if !ok {
		return
	}

	var body selectBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		weberr.BadRequest(w, "invalid JSON body")
		return
	}
	coachID, err := primitive.ObjectIDFromHex(body.CoachID)
	if err != nil {
		weberr.BadRequest(w, "coach_id is not a valid id")
		return
	}

	result, err := h.Engagements.SelectCoach(ctx, ids.engagement, ids.participant, ids.org, coachID)
	if err != nil {
		h.ErrLog.Internal(w, "coach selection", err)
		return
	}

	switch result.Outcome {
	case engagements.OutcomeSelected:
		// The selection consumed the session's batch state; replace the
		// cookie so a stale batch can never be acted on again.
		ps.CurrentBatchIDs = nil
		ps.ShownCoachIDs = nil
		if err := h.Sessions.WriteParticipantSession(w, ps); err != nil {
			h.Log.Warn("participant session refresh after selection failed", zap.Error(err))
		}
		h.Audit.CoachSelected(ctx, r, ids.participant, &ids.org, ps.EngagementID, body.CoachID)
		weberr.JSON(w, http.StatusOK, selectionPayload(result))
	case engagements.OutcomeAlreadySelected:
		h.Audit.SelectionRejected(ctx, r, ids.participant, &ids.org, ps.EngagementID, body.CoachID, string(result.Outcome))
		weberr.JSON(w, http.StatusConflict, selectionPayload(result))
	case engagements.OutcomeWindowClosed, engagements.OutcomeCapacityFull:
		h.Audit.SelectionRejected(ctx, r, ids.participant, &ids.org, ps.EngagementID, body.CoachID, string(result.Outcome))
		weberr.JSON(w, http.StatusConflict, selectResponse{Outcome: string(result.Outcome)})
	case engagements.OutcomeInvalidSession:
		h.Audit.SelectionRejected(ctx, r, ids.participant, &ids.org, ps.EngagementID, body.CoachID, string(result.Outcome))
		weberr.JSON(w, http.StatusUnauthorized, selectResponse{Outcome: string(result.Outcome)})
	default:
		h.ErrLog.Internal(w, "coach selection", errors.New("unknown outcome "+string(result.Outcome)))
	}
}

// selectionPayload includes the coach and booking link for outcomes where
// the participant has a coach to proceed with.
func selectionPayload(result engagements.SelectionResult) selectResponse {
	resp := selectResponse{Outcome: string(result.Outcome)}
	if result.Coach != nil {
		resp.Coach = &coachView{
			ID:          result.Coach.ID.Hex(),
			DisplayName: result.Coach.DisplayName,
			Bio:         result.Coach.Bio,
		}
		resp.Booking = result.Coach.BookingLink
	}
	return resp
}

type contextResponse struct {
	Engagement struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"engagement"`
	Program struct {
		Name string `json:"name"`
	} `json:"program"`
	Cohort struct {
		Name           string    `json:"name"`
		SelectionStart time.Time `json:"selection_start"`
		SelectionEnd   time.Time `json:"selection_end"`
	} `json:"cohort"`
	SelectionOpen bool       `json:"selection_open"`
	RemixUsed     bool       `json:"remix_used"`
	Coach         *coachView `json:"coach,omitempty"`
	BookingLink   string     `json:"booking_link,omitempty"`
}

// Context handles GET /api/selection/context.
func (h *Handler) Context(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "selection context")
	defer cancel()

	ps, ids, ok := h.session(w, r)
	if !ok {
		return
	}

	sc, err := h.Ctx.Load(ctx, ids.engagement, ids.participant, ids.org)
	if err != nil {
		if errors.Is(err, sessionctx.ErrNotFound) {
			weberr.Write(w, http.StatusUnauthorized, weberr.CodeInvalidSession, "engagement not found")
			return
		}
		h.ErrLog.Internal(w, "session context load", err)
		return
	}

	var resp contextResponse
	resp.Engagement.ID = sc.Engagement.ID.Hex()
	resp.Engagement.Status = sc.Engagement.Status
	resp.Program.Name = sc.Program.Name
	resp.Cohort.Name = sc.Cohort.Name
	resp.Cohort.SelectionStart = sc.Cohort.CoachSelectionStart
	resp.Cohort.SelectionEnd = sc.Cohort.CoachSelectionEnd
	resp.SelectionOpen = sc.SelectionOpen
	resp.RemixUsed = ps.RemixUsed
	if sc.Coach != nil {
		resp.Coach = &coachView{
			ID:          sc.Coach.ID.Hex(),
			DisplayName: sc.Coach.DisplayName,
			Bio:         sc.Coach.Bio,
		}
		resp.BookingLink = sc.Coach.BookingLink
	}

	weberr.JSON(w, http.StatusOK, resp)
}
