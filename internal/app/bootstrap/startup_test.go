package bootstrap

import (
	"testing"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/luminacoaching/lumina/internal/domain/models"
	"github.com/luminacoaching/lumina/internal/testutil"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func TestEnsureAdmin_CreatesNew(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	deps := DBDeps{LuminaMongoDatabase: db}

	if err := ensureAdmin(ctx, deps, "admin@lumina.test", testLogger()); err != nil {
		t.Fatalf("ensureAdmin failed: %v", err)
	}

	var user models.User
	err := db.Collection("users").FindOne(ctx, bson.M{"email_ci": "admin@lumina.test"}).Decode(&user)
	if err != nil {
		t.Fatalf("failed to find created user: %v", err)
	}
	if user.Role != models.RoleAdmin {
		t.Errorf("role = %q, want admin", user.Role)
	}
	if user.Status != "active" {
		t.Errorf("status = %q, want active", user.Status)
	}
}

func TestEnsureAdmin_PromotesExisting(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC()
	email := "coach@lumina.test"
	existing := models.User{
		ID:         primitive.NewObjectID(),
		FullName:   "Casey Coach",
		FullNameCI: text.Fold("Casey Coach"),
		Email:      email,
		EmailCI:    text.Fold(email),
		Role:       models.RoleCoach,
		Status:     "disabled",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := db.Collection("users").InsertOne(ctx, existing); err != nil {
		t.Fatalf("insert existing user: %v", err)
	}

	deps := DBDeps{LuminaMongoDatabase: db}

	if err := ensureAdmin(ctx, deps, email, testLogger()); err != nil {
		t.Fatalf("ensureAdmin failed: %v", err)
	}

	var user models.User
	if err := db.Collection("users").FindOne(ctx, bson.M{"_id": existing.ID}).Decode(&user); err != nil {
		t.Fatalf("failed to find user: %v", err)
	}
	if user.Role != models.RoleAdmin {
		t.Errorf("role = %q, want admin", user.Role)
	}
	if user.Status != "active" {
		t.Errorf("status = %q, want active", user.Status)
	}
}

func TestEnsureAdmin_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	deps := DBDeps{LuminaMongoDatabase: db}

	for i := 0; i < 2; i++ {
		if err := ensureAdmin(ctx, deps, "admin@lumina.test", testLogger()); err != nil {
			t.Fatalf("ensureAdmin run %d failed: %v", i+1, err)
		}
	}

	n, err := db.Collection("users").CountDocuments(ctx, bson.M{"email_ci": "admin@lumina.test"})
	if err != nil {
		t.Fatalf("count users: %v", err)
	}
	if n != 1 {
		t.Errorf("admin user count = %d, want 1", n)
	}
}
