package auditlog_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	auditfeature "github.com/luminacoaching/lumina/internal/app/features/auditlog"
	"github.com/luminacoaching/lumina/internal/app/store/audit"
	"github.com/luminacoaching/lumina/internal/testutil"
)

type env struct {
	h      *auditfeature.Handler
	events *audit.Store
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	return &env{
		h:      auditfeature.NewHandler(store, zap.NewNop()),
		events: store,
	}
}

func seedEvents(t *testing.T, e *env, orgID primitive.ObjectID) {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	base := time.Now().UTC().Add(-time.Hour)
	events := []audit.Event{
		{Timestamp: base, Category: audit.CategoryAuth, EventType: audit.EventParticipantSignedIn, OrganizationID: &orgID, Success: true},
		{Timestamp: base.Add(time.Minute), Category: audit.CategorySelection, EventType: audit.EventCoachSelected, OrganizationID: &orgID, Success: true},
		{Timestamp: base.Add(2 * time.Minute), Category: audit.CategoryAuth, EventType: audit.EventMagicLinkReplayed, Success: false, FailureReason: "token already consumed"},
	}
	for _, ev := range events {
		if err := e.events.Log(ctx, ev); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}
}

func get(t *testing.T, e *env, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.NewAuthenticatedRequest("GET", target, testutil.AdminUser())
	rec := httptest.NewRecorder()
	e.h.List(rec, req)
	return rec
}

type listResponse struct {
	Events []struct {
		Category  string `json:"category"`
		EventType string `json:"event_type"`
		Success   bool   `json:"success"`
	} `json:"events"`
	Total int64 `json:"total"`
}

func TestList_NewestFirst(t *testing.T) {
	e := newEnv(t)
	seedEvents(t, e, primitive.NewObjectID())

	rec := get(t, e, "/api/admin/audit")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.Total != 3 {
		t.Fatalf("total = %d, want 3", resp.Total)
	}
	if resp.Events[0].EventType != audit.EventMagicLinkReplayed {
		t.Errorf("first event = %q, want most recent", resp.Events[0].EventType)
	}
}

func TestList_FiltersByCategory(t *testing.T) {
	e := newEnv(t)
	seedEvents(t, e, primitive.NewObjectID())

	rec := get(t, e, "/api/admin/audit?category=selection")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.Total != 1 {
		t.Fatalf("total = %d, want 1", resp.Total)
	}
	if resp.Events[0].EventType != audit.EventCoachSelected {
		t.Errorf("event = %q, want coach_selected", resp.Events[0].EventType)
	}
}

func TestList_FiltersByOrg(t *testing.T) {
	e := newEnv(t)
	orgID := primitive.NewObjectID()
	seedEvents(t, e, orgID)

	rec := get(t, e, "/api/admin/audit?org="+orgID.Hex())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	// The replay event has no org and is excluded.
	if resp.Total != 2 {
		t.Errorf("total = %d, want 2", resp.Total)
	}
}

func TestList_BadTimestamp(t *testing.T) {
	e := newEnv(t)

	rec := get(t, e, "/api/admin/audit?since=yesterday")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestList_LimitClamped(t *testing.T) {
	e := newEnv(t)
	seedEvents(t, e, primitive.NewObjectID())

	rec := get(t, e, "/api/admin/audit?limit=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if len(resp.Events) != 1 {
		t.Errorf("events = %d, want 1 page entry", len(resp.Events))
	}
	if resp.Total != 3 {
		t.Errorf("total = %d, want 3", resp.Total)
	}
}
