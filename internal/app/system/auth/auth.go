// internal/app/system/auth/auth.go

// Package auth manages the two session surfaces of the platform:
//
//   - the staff/admin portal session, a gorilla CookieStore-backed cookie for
//     admins and coaches signed in via magic link or Google;
//   - the participant session, a signed stateless envelope cookie that
//     carries the participant's selection progress and is never persisted
//     server-side.
//
// The two travel in different cookies and different envelope scopes, so a
// token issued for one surface can never be replayed on the other.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/luminacoaching/lumina/internal/app/system/envelope"
	"github.com/luminacoaching/lumina/internal/domain/models"
)

const (
	isAuthKey  = "is_authenticated"
	userIDKey  = "user_id"
	userName   = "user_name"
	userEmail  = "user_email"
	userRole   = "user_role"
	userOrgKey = "organization_id"
)

// ParticipantSessionTTL bounds how long a participant cookie stays valid
// without re-verification.
const ParticipantSessionTTL = 4 * time.Hour

// SessionUser is what we cache in the portal session and inject into
// r.Context().
type SessionUser struct {
	ID             string
	Name           string
	Email          string
	Role           string
	OrganizationID string
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// SessionManager owns the portal cookie store and the participant envelope
// cookie.
type SessionManager struct {
	store           *sessions.CookieStore
	signer          *envelope.Signer
	portalCookie    string
	participantName string
	secure          bool
	log             *zap.Logger
}

// NewSessionManager builds a SessionManager. The session key signs the
// portal cookie; the envelope signer signs participant and magic-link
// tokens. An empty key is a fatal configuration error.
func NewSessionManager(sessionKey, portalCookie, participantCookie, domain string, secure bool, signer *envelope.Signer, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	store.Options = &sessions.Options{
		Domain:   domain,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	logger.Info("session manager initialized",
		zap.Bool("secure", secure),
		zap.String("portal_cookie", portalCookie),
		zap.String("participant_cookie", participantCookie))

	return &SessionManager{
		store:           store,
		signer:          signer,
		portalCookie:    portalCookie,
		participantName: participantCookie,
		secure:          secure,
		log:             logger,
	}, nil
}

// Signer exposes the envelope signer for features that mint their own scoped
// tokens (magic links).
func (m *SessionManager) Signer() *envelope.Signer { return m.signer }

/*─────────────────────────────────────────────────────────────────────────────*
| Portal sessions (staff/admin)                                               |
*─────────────────────────────────────────────────────────────────────────────*/

// CreatePortalSession writes an authenticated portal session cookie for a
// staff user.
func (m *SessionManager) CreatePortalSession(w http.ResponseWriter, r *http.Request, u *models.User) error {
	sess, err := m.store.Get(r, m.portalCookie)
	if err != nil {
		// A stale or tampered cookie decodes to an error but still yields a
		// fresh session; log and continue.
		m.log.Warn("portal cookie invalid, using fresh session", zap.Error(err))
	}

	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = u.ID.Hex()
	sess.Values[userName] = u.FullName
	sess.Values[userEmail] = u.Email
	sess.Values[userRole] = u.Role
	if u.OrganizationID != nil {
		sess.Values[userOrgKey] = u.OrganizationID.Hex()
	}
	return sess.Save(r, w)
}

// ClearPortalSession signs the staff user out.
func (m *SessionManager) ClearPortalSession(w http.ResponseWriter, r *http.Request) error {
	sess, _ := m.store.Get(r, m.portalCookie)
	sess.Options.MaxAge = -1
	for k := range sess.Values {
		delete(sess.Values, k)
	}
	return sess.Save(r, w)
}

// CurrentUser returns the portal user and a "found?" flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

// LoadSessionUser injects the portal user into context if signed in.
func (m *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := m.store.Get(r, m.portalCookie)

		if isAuth, _ := sess.Values[isAuthKey].(bool); isAuth {
			u := &SessionUser{
				ID:             getString(sess, userIDKey),
				Name:           getString(sess, userName),
				Email:          getString(sess, userEmail),
				Role:           getString(sess, userRole),
				OrganizationID: getString(sess, userOrgKey),
			}
			r = withUser(r, u)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole ensures the portal user in context holds one of the allowed
// roles. JSON surface: 401 when anonymous, 403 when the role is wrong.
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			if _, has := set[u.Role]; !has {
				http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Participant envelope cookie                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

// WriteParticipantSession signs the session payload and sets the participant
// cookie. Every mutation of selection progress goes through here; the caller
// owns the payload, the server keeps nothing.
func (m *SessionManager) WriteParticipantSession(w http.ResponseWriter, ps *models.ParticipantSession) error {
	token, err := m.signer.Create(envelope.ScopeParticipant, ps, ParticipantSessionTTL)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.participantName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ParticipantSessionTTL / time.Second),
		Secure:   m.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ParticipantSession verifies the participant cookie and returns its payload.
// Missing, expired, tampered, or wrong-scope cookies all come back as
// (nil, false); callers treat that as "re-authenticate".
func (m *SessionManager) ParticipantSession(r *http.Request) (*models.ParticipantSession, bool) {
	c, err := r.Cookie(m.participantName)
	if err != nil || c.Value == "" {
		return nil, false
	}
	var ps models.ParticipantSession
	if !m.signer.Verify(c.Value, envelope.ScopeParticipant, &ps) {
		return nil, false
	}
	return &ps, true
}

// ClearParticipantSession expires the participant cookie (logout or
// completed selection).
func (m *SessionManager) ClearParticipantSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.participantName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   m.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| helpers                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

// WithTestUser injects a portal user directly into the request context.
// Test-only escape hatch used by testutil.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

// getString safely extracts a string from a session value.
func getString(s *sessions.Session, key string) string {
	if v, ok := s.Values[key].(string); ok {
		return v
	}
	return ""
}
