// internal/app/features/magiclink/handler.go

// Package magiclink implements staff sign-in by emailed one-time link. The
// link carries a signed envelope token scoped to magic links; redemption
// records a consumption keyed by the token hash, so a link works exactly
// once no matter how many tabs or mail clients open it.
package magiclink

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	weberr "github.com/luminacoaching/lumina/internal/app/features/errors"
	"github.com/luminacoaching/lumina/internal/app/store/authevents"
	userstore "github.com/luminacoaching/lumina/internal/app/store/users"
	"github.com/luminacoaching/lumina/internal/app/system/auditlog"
	"github.com/luminacoaching/lumina/internal/app/system/auth"
	"github.com/luminacoaching/lumina/internal/app/system/envelope"
	"github.com/luminacoaching/lumina/internal/app/system/mailer"
	"github.com/luminacoaching/lumina/internal/app/system/ratelimit"
	"github.com/luminacoaching/lumina/internal/app/system/timeouts"
	"github.com/luminacoaching/lumina/internal/domain/models"
)

// DefaultLinkTTL bounds how long an unredeemed link stays valid.
const DefaultLinkTTL = 15 * time.Minute

// Config holds the magic link knobs.
type Config struct {
	BaseURL       string
	LinkTTL       time.Duration
	LinksPerEmail int
	EmailWindow   time.Duration
	SiteName      string
}

// Handler serves staff magic-link sign-in.
type Handler struct {
	Users      *userstore.Store
	AuthEvents *authevents.Store
	RequestIPs *ratelimit.Limiter
	Sessions   *auth.SessionManager
	Mailer     *mailer.Mailer
	Audit      *auditlog.Logger
	ErrLog     *weberr.Logger
	Log        *zap.Logger
	Cfg        Config
}

// NewHandler constructs a magiclink Handler.
func NewHandler(
	users *userstore.Store,
	authEvents *authevents.Store,
	requestIPs *ratelimit.Limiter,
	sessions *auth.SessionManager,
	m *mailer.Mailer,
	audit *auditlog.Logger,
	logger *zap.Logger,
	cfg Config,
) *Handler {
	if cfg.LinkTTL <= 0 {
		cfg.LinkTTL = DefaultLinkTTL
	}
	if cfg.LinksPerEmail <= 0 {
		cfg.LinksPerEmail = 5
	}
	if cfg.EmailWindow <= 0 {
		cfg.EmailWindow = 15 * time.Minute
	}
	return &Handler{
		Users:      users,
		AuthEvents: authEvents,
		RequestIPs: requestIPs,
		Sessions:   sessions,
		Mailer:     m,
		Audit:      audit,
		ErrLog:     weberr.NewLogger(logger),
		Log:        logger,
		Cfg:        cfg,
	}
}

type requestBody struct {
	Email string `json:"email"`
}

// Request handles POST /api/auth/magic-link/request. The response does not
// reveal whether the email belongs to a staff account.
func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "magic link request")
	defer cancel()

	var body requestBody
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
		weberr.RateLimited(w, res.RetryAfterSeconds)
		return
	}
	res, err := h.AuthEvents.Consume(ctx, "link:"+text.Fold(email), h.Cfg.LinksPerEmail, h.Cfg.EmailWindow)
	if err != nil {
		h.ErrLog.Internal(w, "email rate limit", err)
		return
	}
	if !res.Allowed {
		weberr.RateLimited(w, res.RetryAfterSeconds)
		return
	}

	u, err := h.Users.GetActiveStaffByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			h.sent(w)
			return
		}
		h.ErrLog.Internal(w, "staff lookup", err)
		return
	}

	claims := models.MagicLinkClaims{
		UserID: u.ID.Hex(),
		Email:  u.Email,
		Role:   u.Role,
		Nonce:  uuid.NewString(),
	}
	token, err := h.Sessions.Signer().Create(envelope.ScopeMagicLink, claims, h.Cfg.LinkTTL)
	if err != nil {
		h.ErrLog.Internal(w, "magic link token", err)
		return
	}

	link := strings.TrimRight(h.Cfg.BaseURL, "/") +
		"/api/auth/magic-link/redeem?token=" + url.QueryEscape(token)
	msg := mailer.BuildMagicLinkEmail(mailer.MagicLinkEmailData{
		SiteName:  h.Cfg.SiteName,
		MagicLink: link,
		ExpiresIn: expiryPhrase(h.Cfg.LinkTTL),
	})
	msg.To = u.Email
	if err := h.Mailer.Send(ctx, msg); err != nil {
		h.ErrLog.Internal(w, "magic link email", err)
		return
	}

	h.Audit.MagicLinkSent(ctx, r, u.ID, u.Email)
	h.sent(w)
}

func (h *Handler) sent(w http.ResponseWriter) {
	weberr.JSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

type redeemResponse struct {
	Status string `json:"status"`
	Role   string `json:"role"`
	Name   string `json:"name"`
}

// Redeem handles GET /api/auth/magic-link/redeem?token=…. A valid, unused
// token signs the staff user into a portal session.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "magic link redeem")
	defer cancel()

	token := r.URL.Query().Get("token")
	if token == "" {
		weberr.BadRequest(w, "token is required")
		return
	}

	var claims models.MagicLinkClaims
	if !h.Sessions.Signer().Verify(token, envelope.ScopeMagicLink, &claims) {
		weberr.Write(w, http.StatusUnauthorized, weberr.CodeUnauthorized, "link is invalid or expired")
		return
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		weberr.Write(w, http.StatusUnauthorized, weberr.CodeUnauthorized, "link is invalid or expired")
		return
	}

	first, err := h.AuthEvents.ConsumeToken(ctx, token, authevents.ConsumeMeta{
		UserID:    claims.UserID,
		Email:     claims.Email,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.ErrLog.Internal(w, "magic link consume", err)
		return
	}
	if !first {
		h.Audit.MagicLinkReplayed(ctx, r, claims.Email)
		weberr.Write(w, http.StatusUnauthorized, weberr.CodeUnauthorized, "link has already been used")
		return
	}

	// The account may have been deactivated between issue and redemption.
	u, err := h.Users.GetActiveStaffByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			weberr.Write(w, http.StatusUnauthorized, weberr.CodeUnauthorized, "account is not available")
			return
		}
		h.ErrLog.Internal(w, "staff lookup", err)
		return
	}
	if u.ID != userID {
		weberr.Write(w, http.StatusUnauthorized, weberr.CodeUnauthorized, "account is not available")
		return
	}

	if err := h.Sessions.CreatePortalSession(w, r, u); err != nil {
		h.ErrLog.Internal(w, "portal session", err)
		return
	}

	h.Audit.MagicLinkUsed(ctx, r, u.ID, u.Email)
	h.Audit.StaffSignedIn(ctx, r, u.ID, u.OrganizationID, "magic_link")
	weberr.JSON(w, http.StatusOK, redeemResponse{Status: "signed_in", Role: u.Role, Name: u.FullName})
}

// expiryPhrase renders a duration for email copy ("15 minutes").
func expiryPhrase(d time.Duration) string {
	minutes := int(d / time.Minute)
	if minutes <= 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
