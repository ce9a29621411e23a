package authgoogle_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/luminacoaching/lumina/internal/app/features/authgoogle"
	"github.com/luminacoaching/lumina/internal/app/store/audit"
	"github.com/luminacoaching/lumina/internal/app/store/oauthstate"
	userstore "github.com/luminacoaching/lumina/internal/app/store/users"
	"github.com/luminacoaching/lumina/internal/app/system/auditlog"
	"github.com/luminacoaching/lumina/internal/app/system/auth"
	"github.com/luminacoaching/lumina/internal/app/system/envelope"
	"github.com/luminacoaching/lumina/internal/testutil"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func newHandler(t *testing.T, clientID string) (*authgoogle.Handler, *oauthstate.Store) {
	t.Helper()

	db := testutil.SetupTestDB(t)
	logger := zap.NewNop()

	signer, err := envelope.New(testSigningKey)
	if err != nil {
		t.Fatalf("envelope.New: %v", err)
	}
	sessions, err := auth.NewSessionManager(testSigningKey, "lumina_portal", "lumina_participant", "", false, signer, logger)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}

	states := oauthstate.New(db)
	h := authgoogle.NewHandler(
		userstore.New(db),
		states,
		sessions,
		auditlog.New(audit.New(db), logger, auditlog.Config{Auth: "off"}),
		clientID, "secret", "http://localhost:8080",
		logger,
	)
	return h, states
}

func TestServeLogin_RedirectsToGoogleWithStoredState(t *testing.T) {
	h, states := newHandler(t, "client-id")

	req := httptest.NewRequest("GET", "/api/auth/google?return=/roster", nil)
	rec := httptest.NewRecorder()
	h.ServeLogin(rec, req)

	if rec.Code != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if !strings.Contains(loc, "accounts.google.com") {
		t.Fatalf("redirect target = %q, want Google consent screen", loc)
	}

	parsed, err := url.Parse(loc)
	if err != nil {
		t.Fatalf("parse redirect: %v", err)
	}
	state := parsed.Query().Get("state")
	if state == "" {
		t.Fatal("redirect carries no state parameter")
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	returnURL, valid, err := states.Validate(ctx, state)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !valid {
		t.Error("state was not stored")
	}
	if returnURL != "/roster" {
		t.Errorf("return URL = %q, want /roster", returnURL)
	}
}

func TestServeLogin_NotConfigured(t *testing.T) {
	h, _ := newHandler(t, "")

	req := httptest.NewRequest("GET", "/api/auth/google", nil)
	rec := httptest.NewRecorder()
	h.ServeLogin(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); !strings.Contains(loc, "google_not_configured") {
		t.Errorf("redirect = %q, want google_not_configured error", loc)
	}
}

func TestServeCallback_UnknownState(t *testing.T) {
	h, _ := newHandler(t, "client-id")

	req := httptest.NewRequest("GET", "/api/auth/google/callback?state=forged&code=abc", nil)
	rec := httptest.NewRecorder()
	h.ServeCallback(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); !strings.Contains(loc, "invalid_state") {
		t.Errorf("redirect = %q, want invalid_state error", loc)
	}
}

func TestServeCallback_StateIsOneTime(t *testing.T) {
	h, states := newHandler(t, "client-id")
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := states.Save(ctx, "one-shot", "", time.Now().UTC().Add(10*time.Minute)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, valid, err := states.Validate(ctx, "one-shot"); err != nil || !valid {
		t.Fatalf("first Validate = %v valid=%v", err, valid)
	}

	// The consumed state must be refused at the callback.
	req := httptest.NewRequest("GET", "/api/auth/google/callback?state=one-shot&code=abc", nil)
	rec := httptest.NewRecorder()
	h.ServeCallback(rec, req)
	if loc := rec.Header().Get("Location"); !strings.Contains(loc, "invalid_state") {
		t.Errorf("redirect = %q, want invalid_state error", loc)
	}
}
