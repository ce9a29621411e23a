package orgcoaches_test

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/luminacoaching/lumina/internal/app/store/orgcoaches"
	"github.com/luminacoaching/lumina/internal/domain/models"
	"github.com/luminacoaching/lumina/internal/testutil"
)

func TestListPool_AnnotatesLoad(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	store := orgcoaches.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Acme")
	program := fixtures.CreateProgram(ctx, org.ID, "Leadership", "leadership")
	cohort := fixtures.CreateOpenCohort(ctx, org.ID, program.ID, "Spring")

	busy := fixtures.CreateOrgCoach(ctx, org.ID, "Busy Coach", "leadership", 3)
	idle := fixtures.CreateOrgCoach(ctx, org.ID, "Idle Coach", "leadership", 3)

	// Two capacity-counted engagements plus one completed and one canceled;
	// only the first two should appear in the load.
	p1 := fixtures.CreateParticipant(ctx, "P One", "p1@acme.test", org.ID)
	p2 := fixtures.CreateParticipant(ctx, "P Two", "p2@acme.test", org.ID)
	p3 := fixtures.CreateParticipant(ctx, "P Three", "p3@acme.test", org.ID)
	p4 := fixtures.CreateParticipant(ctx, "P Four", "p4@acme.test", org.ID)
	fixtures.CreateEngagementWithStatus(ctx, p1.ID, org.ID, program.ID, cohort.ID, models.StatusCoachSelected, &busy.ID)
	fixtures.CreateEngagementWithStatus(ctx, p2.ID, org.ID, program.ID, cohort.ID, models.StatusInProgress, &busy.ID)
	fixtures.CreateEngagementWithStatus(ctx, p3.ID, org.ID, program.ID, cohort.ID, models.StatusCompleted, &busy.ID)
	fixtures.CreateEngagementWithStatus(ctx, p4.ID, org.ID, program.ID, cohort.ID, models.StatusCanceled, &busy.ID)

	pool, err := store.ListPool(ctx, org.ID, "leadership")
	if err != nil {
		t.Fatalf("ListPool failed: %v", err)
	}
	if len(pool) != 2 {
		t.Fatalf("got %d coaches, want 2", len(pool))
	}

	loads := map[string]int{}
	for _, c := range pool {
		loads[c.ID.Hex()] = c.ActiveEngagements
	}
	if loads[busy.ID.Hex()] != 2 {
		t.Errorf("busy coach load = %d, want 2 (completed and canceled must not count)", loads[busy.ID.Hex()])
	}
	if loads[idle.ID.Hex()] != 0 {
		t.Errorf("idle coach load = %d, want 0", loads[idle.ID.Hex()])
	}
}

func TestListPool_ScopesToOrgPoolAndActive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	store := orgcoaches.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Acme")
	other := fixtures.CreateOrganization(ctx, "Globex")

	in := fixtures.CreateOrgCoach(ctx, org.ID, "In Pool", "leadership", 3)
	fixtures.CreateOrgCoach(ctx, org.ID, "Other Pool", "wellness", 3)
	fixtures.CreateOrgCoach(ctx, other.ID, "Other Org", "leadership", 3)

	inactive := fixtures.CreateOrgCoach(ctx, org.ID, "Inactive", "leadership", 3)
	if err := store.UpdateProfile(ctx, inactive.ID, "", "", "", []string{"leadership"}, 3, false); err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}

	archived := fixtures.CreateOrgCoach(ctx, org.ID, "Archived", "leadership", 3)
	if err := store.Archive(ctx, archived.ID); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}

	pool, err := store.ListPool(ctx, org.ID, "leadership")
	if err != nil {
		t.Fatalf("ListPool failed: %v", err)
	}
	if len(pool) != 1 || pool[0].ID != in.ID {
		t.Fatalf("pool should contain only the in-scope active coach, got %d entries", len(pool))
	}
}

func TestGetEligible(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	store := orgcoaches.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Acme")
	coach := fixtures.CreateOrgCoach(ctx, org.ID, "Taylor", "leadership", 3)

	got, err := store.GetEligible(ctx, coach.ID, org.ID, "leadership")
	if err != nil {
		t.Fatalf("GetEligible failed: %v", err)
	}
	if got.ID != coach.ID {
		t.Errorf("got coach %s, want %s", got.ID.Hex(), coach.ID.Hex())
	}

	if _, err := store.GetEligible(ctx, coach.ID, org.ID, "wellness"); err != orgcoaches.ErrNotFound {
		t.Errorf("wrong pool: got %v, want ErrNotFound", err)
	}
	if _, err := store.GetEligible(ctx, coach.ID, primitive.NewObjectID(), "leadership"); err != orgcoaches.ErrNotFound {
		t.Errorf("wrong org: got %v, want ErrNotFound", err)
	}

	if err := store.Archive(ctx, coach.ID); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if _, err := store.GetEligible(ctx, coach.ID, org.ID, "leadership"); err != orgcoaches.ErrNotFound {
		t.Errorf("archived coach: got %v, want ErrNotFound", err)
	}
}

func TestCreateAndUpdateProfile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fixtures := testutil.NewFixtures(t, db)
	store := orgcoaches.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fixtures.CreateOrganization(ctx, "Acme")
	user := fixtures.CreateUser(ctx, "New Coach", "new@coach.test", models.RoleCoach, &org.ID)

	created, err := store.Create(ctx, models.OrganizationCoach{
		UserID:         user.ID,
		OrganizationID: org.ID,
		DisplayName:    "New Coach",
		Pools:          []string{"leadership"},
		MaxEngagements: 5,
		Active:         true,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.DisplayNameCI != "new coach" {
		t.Errorf("DisplayNameCI = %q, want folded name", created.DisplayNameCI)
	}

	if err := store.UpdateProfile(ctx, created.ID, "Renamed Coach", "<p>bio</p>", "https://book.test/x", []string{"wellness"}, 2, true); err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	got, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.DisplayName != "Renamed Coach" || got.DisplayNameCI != "renamed coach" {
		t.Errorf("rename not applied: %q / %q", got.DisplayName, got.DisplayNameCI)
	}
	if got.MaxEngagements != 2 || len(got.Pools) != 1 || got.Pools[0] != "wellness" {
		t.Errorf("capacity/pool update not applied: %+v", got)
	}

	if err := store.UpdateProfile(ctx, primitive.NewObjectID(), "X", "", "", nil, 1, true); err != orgcoaches.ErrNotFound {
		t.Errorf("missing coach: got %v, want ErrNotFound", err)
	}
}
