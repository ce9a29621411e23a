// internal/app/features/participant/handler.go

// Package participant implements participant sign-in for coach selection.
// A participant asks for a 6-digit access code by email, then trades the
// code for a signed participant session cookie. Both steps are rate
// limited per client IP and per email address, and every outcome lands in
// the audit log.
package participant

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"go.uber.org/zap"

	weberr "github.com/luminacoaching/lumina/internal/app/features/errors"
	"github.com/luminacoaching/lumina/internal/app/store/accesscodes"
	"github.com/luminacoaching/lumina/internal/app/store/authevents"
	"github.com/luminacoaching/lumina/internal/app/store/engagements"
	userstore "github.com/luminacoaching/lumina/internal/app/store/users"
	"github.com/luminacoaching/lumina/internal/app/system/auditlog"
	"github.com/luminacoaching/lumina/internal/app/system/auth"
	"github.com/luminacoaching/lumina/internal/app/system/mailer"
	"github.com/luminacoaching/lumina/internal/app/system/ratelimit"
	"github.com/luminacoaching/lumina/internal/app/system/timeouts"
	"github.com/luminacoaching/lumina/internal/domain/models"
)

// Config holds the participant auth knobs.
type Config struct {
	// CodesPerEmail bounds code requests per email address per EmailWindow.
	CodesPerEmail int
	EmailWindow   time.Duration
	SiteName      string
}

// Handler serves participant authentication.
type Handler struct {
	Users       *userstore.Store
	Codes       *accesscodes.Store
	Engagements *engagements.Store
	AuthEvents  *authevents.Store
	RequestIPs  *ratelimit.Limiter
	VerifyIPs   *ratelimit.Limiter
	Sessions    *auth.SessionManager
	Mailer      *mailer.Mailer
	Audit       *auditlog.Logger
	ErrLog      *weberr.Logger
	Log         *zap.Logger
	Cfg         Config
}

// NewHandler constructs a participant Handler.
func NewHandler(
	users *userstore.Store,
	codes *accesscodes.Store,
	engs *engagements.Store,
	authEvents *authevents.Store,
	requestIPs, verifyIPs *ratelimit.Limiter,
	sessions *auth.SessionManager,
	m *mailer.Mailer,
	audit *auditlog.Logger,
	logger *zap.Logger,
	cfg Config,
) *Handler {
	if cfg.CodesPerEmail <= 0 {
		cfg.CodesPerEmail = 5
	}
	if cfg.EmailWindow <= 0 {
		cfg.EmailWindow = 15 * time.Minute
	}
	return &Handler{
		Users:       users,
		Codes:       codes,
		Engagements: engs,
		AuthEvents:  authEvents,
		RequestIPs:  requestIPs,
		VerifyIPs:   verifyIPs,
		Sessions:    sessions,
		Mailer:      m,
		Audit:       audit,
		ErrLog:      weberr.NewLogger(logger),
		Log:         logger,
		Cfg:         cfg,
	}
}

type requestCodeBody struct {
	Email  string `json:"email"`
	Resend bool   `json:"resend"`
}

// RequestCode handles POST /api/participant/request-code.
//
// The response is the same whether or not the email belongs to a known
// participant, so the endpoint cannot be used to probe for accounts. Only
// rate-limit rejections are distinguishable.
func (h *Handler) RequestCode(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "participant request-code")
	defer cancel()

	var body requestCodeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		weberr.BadRequest(w, "invalid JSON body")
		return
	}
	email := strings.TrimSpace(body.Email)
	if email == "" {
		weberr.BadRequest(w, "email is required")
		return
	}

	if res := h.RequestIPs.Consume(ratelimit.ClientIP(r)); !res.Allowed {
		h.Audit.AccessCodeRateLimited(ctx, r, "ip")
		weberr.RateLimited(w, res.RetryAfterSeconds)
		return
	}

	res, err := h.AuthEvents.Consume(ctx, "code:"+text.Fold(email), h.Cfg.CodesPerEmail, h.Cfg.EmailWindow)
	if err != nil {
		h.ErrLog.Internal(w, "email rate limit", err)
		return
	}
	if !res.Allowed {
		h.Audit.AccessCodeRateLimited(ctx, r, "email")
		weberr.RateLimited(w, res.RetryAfterSeconds)
		return
	}

	u, err := h.Users.GetActiveParticipantByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			h.Audit.AccessCodeFailed(ctx, r, nil, "unknown_email")
			h.sent(w)
			return
		}
		h.ErrLog.Internal(w, "participant lookup", err)
		return
	}

	// A code is only useful with a live invitation to act on.
	if _, err := h.Engagements.FindInvitedByParticipant(ctx, u.ID, *u.OrganizationID); err != nil {
		if errors.Is(err, engagements.ErrNotFound) {
			h.Audit.AccessCodeFailed(ctx, r, &u.ID, "no_invitation")
			h.sent(w)
			return
		}
		h.ErrLog.Internal(w, "engagement lookup", err)
		return
	}

	code, err := h.Codes.Create(ctx, u.ID, u.Email, body.Resend)
	if err != nil {
		if errors.Is(err, accesscodes.ErrTooManyResends) {
			h.Audit.AccessCodeRateLimited(ctx, r, "resend")
			weberr.RateLimited(w, int(accesscodes.ResendWindow/time.Second))
			return
		}
		h.ErrLog.Internal(w, "access code create", err)
		return
	}

	email2 := mailer.BuildAccessCodeEmail(mailer.AccessCodeEmailData{
		SiteName:  h.Cfg.SiteName,
		Code:      code,
		ExpiresIn: expiryPhrase(h.Codes.Expiry()),
	})
	email2.To = u.Email
	if err := h.Mailer.Send(ctx, email2); err != nil {
		h.ErrLog.Internal(w, "access code email", err)
		return
	}

	h.Audit.AccessCodeSent(ctx, r, u.ID, u.OrganizationID, u.Email, body.Resend)
	h.sent(w)
}

func (h *Handler) sent(w http.ResponseWriter) {
	weberr.JSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

type verifyCodeBody struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type verifyCodeResponse struct {
	ParticipantID string `json:"participant_id"`
	EngagementID  string `json:"engagement_id"`
	Status        string `json:"status"`
}

// VerifyCode handles POST /api/participant/verify-code. On success it sets
// the signed participant session cookie and returns the engagement the
// session is bound to.
func (h *Handler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "participant verify-code")
	defer cancel()

	var body verifyCodeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		weberr.BadRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Email) == "" || strings.TrimSpace(body.Code) == "" {
		weberr.BadRequest(w, "email and code are required")
		return
	}

	if res := h.VerifyIPs.Consume(ratelimit.ClientIP(r)); !res.Allowed {
		h.Audit.AccessCodeRateLimited(ctx, r, "ip")
		weberr.RateLimited(w, res.RetryAfterSeconds)
		return
	}

	u, err := h.Users.GetActiveParticipantByEmail(ctx, body.Email)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			h.Audit.AccessCodeFailed(ctx, r, nil, "unknown_email")
			h.rejectCode(w)
			return
		}
		h.ErrLog.Internal(w, "participant lookup", err)
		return
	}

	if err := h.Codes.Verify(ctx, u.ID, strings.TrimSpace(body.Code)); err != nil {
		switch {
		case errors.Is(err, accesscodes.ErrTooManyAttempts):
			h.Audit.AccessCodeRateLimited(ctx, r, "attempts")
			weberr.RateLimited(w, int(h.Codes.Expiry()/time.Second))
		case errors.Is(err, accesscodes.ErrNotFound), errors.Is(err, accesscodes.ErrInvalidCode):
			h.Audit.AccessCodeFailed(ctx, r, &u.ID, "bad_code")
			h.rejectCode(w)
		default:
			h.ErrLog.Internal(w, "access code verify", err)
		}
		return
	}

	e, err := h.Engagements.FindInvitedByParticipant(ctx, u.ID, *u.OrganizationID)
	if err != nil {
		if errors.Is(err, engagements.ErrNotFound) {
			weberr.NotFound(w, "no active invitation")
			return
		}
		h.ErrLog.Internal(w, "engagement lookup", err)
		return
	}

	ps := &models.ParticipantSession{
		ParticipantID:  u.ID.Hex(),
		EngagementID:   e.ID.Hex(),
		OrganizationID: e.OrganizationID.Hex(),
		CohortID:       e.CohortID.Hex(),
		Email:          u.Email,
	}
	if err := h.Sessions.WriteParticipantSession(w, ps); err != nil {
		h.ErrLog.Internal(w, "participant session write", err)
		return
	}

	h.Audit.ParticipantSignedIn(ctx, r, u.ID, u.OrganizationID, e.ID.Hex())
	weberr.JSON(w, http.StatusOK, verifyCodeResponse{
		ParticipantID: ps.ParticipantID,
		EngagementID:  ps.EngagementID,
		Status:        e.Status,
	})
}

func (h *Handler) rejectCode(w http.ResponseWriter) {
	weberr.Write(w, http.StatusUnauthorized, weberr.CodeUnauthorized, "invalid or expired code")
}

// expiryPhrase renders a duration for email copy ("10 minutes").
func expiryPhrase(d time.Duration) string {
	minutes := int(d / time.Minute)
	if minutes <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
