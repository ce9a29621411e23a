package participant_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	weberr "github.com/luminacoaching/lumina/internal/app/features/errors"
	"github.com/luminacoaching/lumina/internal/app/features/participant"
	"github.com/luminacoaching/lumina/internal/app/store/accesscodes"
	"github.com/luminacoaching/lumina/internal/app/store/audit"
	"github.com/luminacoaching/lumina/internal/app/store/authevents"
	"github.com/luminacoaching/lumina/internal/app/store/cohorts"
	"github.com/luminacoaching/lumina/internal/app/store/engagements"
	lockstore "github.com/luminacoaching/lumina/internal/app/store/locks"
	"github.com/luminacoaching/lumina/internal/app/store/orgcoaches"
	"github.com/luminacoaching/lumina/internal/app/store/programs"
	userstore "github.com/luminacoaching/lumina/internal/app/store/users"
	"github.com/luminacoaching/lumina/internal/app/system/auditlog"
	"github.com/luminacoaching/lumina/internal/app/system/auth"
	"github.com/luminacoaching/lumina/internal/app/system/envelope"
	"github.com/luminacoaching/lumina/internal/app/system/mailer"
	"github.com/luminacoaching/lumina/internal/app/system/ratelimit"
	"github.com/luminacoaching/lumina/internal/testutil"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

type env struct {
	h     *participant.Handler
	codes *accesscodes.Store
	fx    *testutil.Fixtures
	db    *mongo.Database
}

func newEnv(t *testing.T, ipLimit int) *env {
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

	locks := lockstore.New(db)
	coaches := orgcoaches.New(db)
	cohortStore := cohorts.New(db)
	programStore := programs.New(db)
	engs := engagements.New(db, coaches, cohortStore, programStore, locks)
	codes := accesscodes.New(db, 0)

	h := participant.NewHandler(
		userstore.New(db),
		codes,
		engs,
		authevents.New(db, locks),
		ratelimit.New(ipLimit, time.Minute),
		ratelimit.New(ipLimit, time.Minute),
		sessions,
		mailer.New(mailer.Config{SiteName: "Lumina"}, logger),
		auditlog.New(audit.New(db), logger, auditlog.Config{Auth: "db"}),
		logger,
		participant.Config{SiteName: "Lumina"},
	)
	return &env{h: h, codes: codes, fx: testutil.NewFixtures(t, db), db: db}
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestRequestCode_KnownParticipant(t *testing.T) {
	e := newEnv(t, 100)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := e.fx.CreateOrganization(ctx, "Acme")
	prog := e.fx.CreateProgram(ctx, org.ID, "Leadership", "leadership")
	cohort := e.fx.CreateOpenCohort(ctx, org.ID, prog.ID, "Fall")
	p := e.fx.CreateParticipant(ctx, "Pat Lee", "pat@acme.test", org.ID)
	e.fx.CreateEngagement(ctx, p.ID, org.ID, prog.ID, cohort.ID)

	rec := postJSON(t, e.h.RequestCode, "/api/participant/request-code", map[string]any{"email": "pat@acme.test"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	// A pending code exists for the participant.
	n, err := e.db.Collection("access_codes").CountDocuments(ctx, map[string]any{"user_id": p.ID})
	if err != nil {
		t.Fatalf("count codes: %v", err)
	}
	if n != 1 {
		t.Errorf("pending codes = %d, want 1", n)
	}
}

func TestRequestCode_UnknownEmailIndistinguishable(t *testing.T) {
	e := newEnv(t, 100)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	rec := postJSON(t, e.h.RequestCode, "/api/participant/request-code", map[string]any{"email": "nobody@acme.test"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for unknown email", rec.Code)
	}

	n, err := e.db.Collection("access_codes").CountDocuments(ctx, map[string]any{})
	if err != nil {
		t.Fatalf("count codes: %v", err)
	}
	if n != 0 {
		t.Errorf("codes created for unknown email = %d, want 0", n)
	}
}

func TestRequestCode_IPRateLimited(t *testing.T) {
	e := newEnv(t, 2)

	body := map[string]any{"email": "pat@acme.test"}
	postJSON(t, e.h.RequestCode, "/api/participant/request-code", body)
	postJSON(t, e.h.RequestCode, "/api/participant/request-code", body)

	rec := postJSON(t, e.h.RequestCode, "/api/participant/request-code", body)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse body: %v", err)
	}
	if resp.Error != weberr.CodeRateLimited {
		t.Errorf("error = %q, want %q", resp.Error, weberr.CodeRateLimited)
	}
}

func TestVerifyCode_IssuesSession(t *testing.T) {
	e := newEnv(t, 100)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := e.fx.CreateOrganization(ctx, "Acme")
	prog := e.fx.CreateProgram(ctx, org.ID, "Leadership", "leadership")
	cohort := e.fx.CreateOpenCohort(ctx, org.ID, prog.ID, "Fall")
	p := e.fx.CreateParticipant(ctx, "Pat Lee", "pat@acme.test", org.ID)
	eng := e.fx.CreateEngagement(ctx, p.ID, org.ID, prog.ID, cohort.ID)

	code, err := e.codes.Create(ctx, p.ID, p.Email, false)
	if err != nil {
		t.Fatalf("create code: %v", err)
	}

	rec := postJSON(t, e.h.VerifyCode, "/api/participant/verify-code",
		map[string]any{"email": "pat@acme.test", "code": code})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		ParticipantID string `json:"participant_id"`
		EngagementID  string `json:"engagement_id"`
		Status        string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse body: %v", err)
	}
	if resp.EngagementID != eng.ID.Hex() {
		t.Errorf("engagement_id = %q, want %q", resp.EngagementID, eng.ID.Hex())
	}
	if resp.Status != "invited" {
		t.Errorf("status = %q, want invited", resp.Status)
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "lumina_participant" {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("participant cookie not set")
	}
	if !cookie.HttpOnly {
		t.Error("participant cookie not HttpOnly")
	}
}

func TestVerifyCode_WrongCode(t *testing.T) {
	e := newEnv(t, 100)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := e.fx.CreateOrganization(ctx, "Acme")
	p := e.fx.CreateParticipant(ctx, "Pat Lee", "pat@acme.test", org.ID)
	if _, err := e.codes.Create(ctx, p.ID, p.Email, false); err != nil {
		t.Fatalf("create code: %v", err)
	}

	rec := postJSON(t, e.h.VerifyCode, "/api/participant/verify-code",
		map[string]any{"email": "pat@acme.test", "code": "000000"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("no cookie should be set on failed verification")
	}
}

func TestVerifyCode_MissingFields(t *testing.T) {
	e := newEnv(t, 100)

	rec := postJSON(t, e.h.VerifyCode, "/api/participant/verify-code", map[string]any{"email": "pat@acme.test"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
