package logout_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/luminacoaching/lumina/internal/app/features/logout"
	"github.com/luminacoaching/lumina/internal/app/system/auditlog"
	"github.com/luminacoaching/lumina/internal/app/system/auth"
	"github.com/luminacoaching/lumina/internal/app/system/envelope"
	"github.com/luminacoaching/lumina/internal/domain/models"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func newHandler(t *testing.T) (*logout.Handler, *auth.SessionManager) {
	t.Helper()
	logger := zap.NewNop()
	signer, err := envelope.New(testSigningKey)
	if err != nil {
		t.Fatalf("envelope.New: %v", err)
	}
	sessions, err := auth.NewSessionManager(testSigningKey, "lumina_portal", "lumina_participant", "", false, signer, logger)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	h := logout.NewHandler(sessions, auditlog.New(nil, logger, auditlog.Config{Auth: "log"}), logger)
	return h, sessions
}

func expiredCookies(rec *httptest.ResponseRecorder) map[string]bool {
	out := map[string]bool{}
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			out[c.Name] = true
		}
	}
	return out
}

func TestLogout_ClearsParticipantCookie(t *testing.T) {
	h, sessions := newHandler(t)

	seed := httptest.NewRecorder()
	err := sessions.WriteParticipantSession(seed, &models.ParticipantSession{
		ParticipantID:  "64a000000000000000000001",
		EngagementID:   "64a000000000000000000002",
		OrganizationID: "64a000000000000000000003",
		Email:          "pat@acme.test",
	})
	if err != nil {
		t.Fatalf("WriteParticipantSession: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/auth/logout", nil)
	for _, c := range seed.Result().Cookies() {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeLogout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	expired := expiredCookies(rec)
	if !expired["lumina_participant"] {
		t.Error("participant cookie not expired")
	}
	if !expired["lumina_portal"] {
		t.Error("portal cookie not expired")
	}
}

func TestLogout_NoSessionIsNoOp(t *testing.T) {
	h, _ := newHandler(t)

	req := httptest.NewRequest("POST", "/api/auth/logout", nil)
	rec := httptest.NewRecorder()
	h.ServeLogout(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even without a session", rec.Code)
	}
}
