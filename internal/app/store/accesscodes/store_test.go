// internal/app/store/accesscodes/store_test.go
package accesscodes

import (
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/luminacoaching/lumina/internal/testutil"
)

func TestCreateAndVerify(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db, 0)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	code, err := s.Create(ctx, userID, "p@org.test", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(code) != CodeLength {
		t.Errorf("code length = %d, want %d", len(code), CodeLength)
	}

	if err := s.Verify(ctx, userID, code); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	// Success consumes the code.
	err = s.Verify(ctx, userID, code)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("second Verify = %v, want ErrNotFound", err)
	}
}

func TestVerify_WrongCode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db, 0)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	code, err := s.Create(ctx, userID, "p@org.test", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.Verify(ctx, userID, "000000"); !errors.Is(err, ErrInvalidCode) {
		t.Errorf("Verify wrong code = %v, want ErrInvalidCode", err)
	}

	// A failed attempt does not burn the code.
	if err := s.Verify(ctx, userID, code); err != nil {
		t.Errorf("Verify right code after miss = %v", err)
	}
}

func TestVerify_AttemptCap(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db, 0)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	code, err := s.Create(ctx, userID, "p@org.test", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	for i := 0; i < MaxVerifyAttempts; i++ {
		if err := s.Verify(ctx, userID, "000000"); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("attempt %d = %v, want ErrInvalidCode", i+1, err)
		}
	}

	// Even the right code is refused once the cap is hit.
	if err := s.Verify(ctx, userID, code); !errors.Is(err, ErrTooManyAttempts) {
		t.Errorf("Verify after cap = %v, want ErrTooManyAttempts", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db, 50*time.Millisecond)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	code, err := s.Create(ctx, userID, "p@org.test", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := s.Verify(ctx, userID, code); !errors.Is(err, ErrNotFound) {
		t.Errorf("Verify expired = %v, want ErrNotFound", err)
	}
}

func TestCreate_ReplacesPendingCode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db, 0)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	first, err := s.Create(ctx, userID, "p@org.test", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	second, err := s.Create(ctx, userID, "p@org.test", true)
	if err != nil {
		t.Fatalf("resend Create: %v", err)
	}

	n, err := s.c.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		t.Fatalf("CountDocuments: %v", err)
	}
	if n != 1 {
		t.Errorf("pending codes = %d, want 1", n)
	}

	// The old code is dead unless the generator happened to repeat it.
	if first != second {
		if err := s.Verify(ctx, userID, first); !errors.Is(err, ErrInvalidCode) {
			t.Errorf("Verify stale code = %v, want ErrInvalidCode", err)
		}
	}
	if err := s.Verify(ctx, userID, second); err != nil {
		t.Errorf("Verify fresh code = %v", err)
	}
}

func TestCreate_ResendCap(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db, 0)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	if _, err := s.Create(ctx, userID, "p@org.test", false); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for i := 0; i < MaxResends; i++ {
		if _, err := s.Create(ctx, userID, "p@org.test", true); err != nil {
			t.Fatalf("resend %d: %v", i+1, err)
		}
	}

	_, err := s.Create(ctx, userID, "p@org.test", true)
	if !errors.Is(err, ErrTooManyResends) {
		t.Errorf("resend past cap = %v, want ErrTooManyResends", err)
	}

	// A fresh request is not a resend and is never blocked by the cap.
	if _, err := s.Create(ctx, userID, "p@org.test", false); err != nil {
		t.Errorf("fresh Create after cap = %v", err)
	}
}

func TestDeleteByUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := New(db, 0)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	code, err := s.Create(ctx, userID, "p@org.test", false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.DeleteByUser(ctx, userID); err != nil {
		t.Fatalf("DeleteByUser: %v", err)
	}
	if err := s.Verify(ctx, userID, code); !errors.Is(err, ErrNotFound) {
		t.Errorf("Verify after delete = %v, want ErrNotFound", err)
	}
}
