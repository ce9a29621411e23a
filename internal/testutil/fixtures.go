// internal/testutil/fixtures.go
package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/luminacoaching/lumina/internal/domain/models"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateOrganization creates a test organization with the given name.
func (f *Fixtures) CreateOrganization(ctx context.Context, name string) models.Organization {
	f.t.Helper()

	now := time.Now().UTC()
	org := models.Organization{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("organizations").InsertOne(ctx, org); err != nil {
		f.t.Fatalf("failed to create test organization: %v", err)
	}
	return org
}

// CreateProgram creates a test program drawing from the given coach pool tag.
func (f *Fixtures) CreateProgram(ctx context.Context, orgID primitive.ObjectID, name, pool string) models.Program {
	f.t.Helper()

	now := time.Now().UTC()
	p := models.Program{
		ID:             primitive.NewObjectID(),
		OrganizationID: orgID,
		Name:           name,
		NameCI:         text.Fold(name),
		Pool:           pool,
		Status:         "active",
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if _, err := f.db.Collection("programs").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test program: %v", err)
	}
	return p
}

// CreateCohort creates a cohort whose selection window spans [start, end).
func (f *Fixtures) CreateCohort(ctx context.Context, orgID, programID primitive.ObjectID, name string, start, end time.Time) models.Cohort {
	f.t.Helper()

	now := time.Now().UTC()
	c := models.Cohort{
		ID:                  primitive.NewObjectID(),
		OrganizationID:      orgID,
		ProgramID:           programID,
		Name:                name,
		NameCI:              text.Fold(name),
		CoachSelectionStart: start,
		CoachSelectionEnd:   end,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if _, err := f.db.Collection("cohorts").InsertOne(ctx, c); err != nil {
		f.t.Fatalf("failed to create test cohort: %v", err)
	}
	return c
}

// CreateOpenCohort creates a cohort whose selection window is currently open.
func (f *Fixtures) CreateOpenCohort(ctx context.Context, orgID, programID primitive.ObjectID, name string) models.Cohort {
	f.t.Helper()
	now := time.Now().UTC()
	return f.CreateCohort(ctx, orgID, programID, name, now.Add(-24*time.Hour), now.Add(14*24*time.Hour))
}

// CreateClosedCohort creates a cohort whose selection window has already
// ended.
func (f *Fixtures) CreateClosedCohort(ctx context.Context, orgID, programID primitive.ObjectID, name string) models.Cohort {
	f.t.Helper()
	now := time.Now().UTC()
	return f.CreateCohort(ctx, orgID, programID, name, now.Add(-14*24*time.Hour), now.Add(-24*time.Hour))
}

// CreateUser creates a test user with the given role.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, email, role string, orgID *primitive.ObjectID) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:             primitive.NewObjectID(),
		FullName:       fullName,
		FullNameCI:     text.Fold(fullName),
		Email:          email,
		EmailCI:        text.Fold(email),
		Role:           role,
		Status:         "active",
		OrganizationID: orgID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateAdmin creates a test admin user.
func (f *Fixtures) CreateAdmin(ctx context.Context, fullName, email string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, models.RoleAdmin, nil)
}

// CreateParticipant creates a test participant user in the organization.
func (f *Fixtures) CreateParticipant(ctx context.Context, fullName, email string, orgID primitive.ObjectID) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, fullName, email, models.RoleParticipant, &orgID)
}

// CreateOrgCoach creates a coach membership with the given pool tag and
// capacity ceiling, backed by a fresh coach user.
func (f *Fixtures) CreateOrgCoach(ctx context.Context, orgID primitive.ObjectID, name, pool string, maxEngagements int) models.OrganizationCoach {
	f.t.Helper()

	coachUser := f.CreateUser(ctx, name, text.Fold(name)+"@coach.test", models.RoleCoach, &orgID)

	now := time.Now().UTC()
	oc := models.OrganizationCoach{
		ID:             primitive.NewObjectID(),
		UserID:         coachUser.ID,
		OrganizationID: orgID,
		DisplayName:    name,
		DisplayNameCI:  text.Fold(name),
		BookingLink:    "https://book.test/" + text.Fold(name),
		Pools:          []string{pool},
		MaxEngagements: maxEngagements,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if _, err := f.db.Collection("org_coaches").InsertOne(ctx, oc); err != nil {
		f.t.Fatalf("failed to create test org coach: %v", err)
	}
	return oc
}

// CreateEngagement creates an engagement in the invited state for the given
// participant.
func (f *Fixtures) CreateEngagement(ctx context.Context, participantID, orgID, programID, cohortID primitive.ObjectID) models.Engagement {
	f.t.Helper()
	return f.CreateEngagementWithStatus(ctx, participantID, orgID, programID, cohortID, models.StatusInvited, nil)
}

// CreateEngagementWithStatus creates an engagement in an arbitrary state,
// optionally assigned to a coach.
func (f *Fixtures) CreateEngagementWithStatus(ctx context.Context, participantID, orgID, programID, cohortID primitive.ObjectID, status string, coachID *primitive.ObjectID) models.Engagement {
	f.t.Helper()

	now := time.Now().UTC()
	e := models.Engagement{
		ID:                  primitive.NewObjectID(),
		ParticipantID:       participantID,
		OrganizationID:      orgID,
		ProgramID:           programID,
		CohortID:            cohortID,
		OrganizationCoachID: coachID,
		Status:              status,
		StatusVersion:       1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if status != models.StatusInvited && coachID != nil {
		sel := now
		e.CoachSelectedAt = &sel
	}

	if _, err := f.db.Collection("engagements").InsertOne(ctx, e); err != nil {
		f.t.Fatalf("failed to create test engagement: %v", err)
	}
	return e
}
