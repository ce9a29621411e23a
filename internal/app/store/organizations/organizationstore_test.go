// internal/app/store/organizations/organizationstore_test.go
package organizations

import (
	"errors"
	"testing"

	"github.com/luminacoaching/lumina/internal/domain/models"
	"github.com/luminacoaching/lumina/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org, err := s.Create(ctx, models.Organization{Name: "Acme Corp"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if org.NameCI != "acme corp" {
		t.Errorf("NameCI = %q, want %q", org.NameCI, "acme corp")
	}
	if org.Status != "active" {
		t.Errorf("Status = %q, want active", org.Status)
	}

	got, err := s.GetByID(ctx, org.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Name != "Acme Corp" {
		t.Errorf("Name = %q, want %q", got.Name, "Acme Corp")
	}
}

func TestCreate_DuplicateName(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := s.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}

	if _, err := s.Create(ctx, models.Organization{Name: "Acme Corp"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Case-folded collision.
	_, err := s.Create(ctx, models.Organization{Name: "ACME corp"})
	if !errors.Is(err, ErrDuplicateOrganization) {
		t.Errorf("Create duplicate = %v, want ErrDuplicateOrganization", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := s.GetByID(ctx, primitive.NewObjectID())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID = %v, want ErrNotFound", err)
	}
}

func TestList_SortedByFoldedName(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, name := range []string{"Zenith", "acme", "Beacon"} {
		if _, err := s.Create(ctx, models.Organization{Name: name}); err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
	}

	orgs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(orgs) != 3 {
		t.Fatalf("len = %d, want 3", len(orgs))
	}
	want := []string{"acme", "Beacon", "Zenith"}
	for i, w := range want {
		if orgs[i].Name != w {
			t.Errorf("orgs[%d].Name = %q, want %q", i, orgs[i].Name, w)
		}
	}
}
