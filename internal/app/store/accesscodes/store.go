// internal/app/store/accesscodes/store.go

// Package accesscodes manages the short-lived email codes participants use to
// open a selection session. Codes are stored bcrypt-hashed and are single
// use; resends and failed attempts are capped per pending code.
package accesscodes

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

const (
	// CodeLength is the length of the access code (6 digits).
	CodeLength = 6
	// DefaultExpiry is how long an access code is valid.
	DefaultExpiry = 10 * time.Minute
	// BcryptCost for hashing codes.
	BcryptCost = 10
	// MaxVerifyAttempts is the maximum number of code checks per pending code.
	MaxVerifyAttempts = 5
	// MaxResends is the maximum number of resends within the resend window.
	MaxResends = 3
	// ResendWindow is the window for the resend cap.
	ResendWindow = 10 * time.Minute
)

var (
	// ErrNotFound is returned when no unexpired code exists for the user.
	ErrNotFound = errors.New("access code not found or expired")
	// ErrInvalidCode is returned when the code does not match.
	ErrInvalidCode = errors.New("invalid access code")
	// ErrTooManyAttempts is returned when the attempt cap is exceeded.
	ErrTooManyAttempts = errors.New("too many code attempts")
	// ErrTooManyResends is returned when the resend cap is exceeded.
	ErrTooManyResends = errors.New("too many resend requests")
)

// AccessCode is one pending code.
type AccessCode struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	UserID      primitive.ObjectID `bson:"user_id"`
	Email       string             `bson:"email"`
	CodeHash    string             `bson:"code_hash"`
	ExpiresAt   time.Time          `bson:"expires_at"`
	CreatedAt   time.Time          `bson:"created_at"`
	Attempts    int                `bson:"attempts"`
	ResendCount int                `bson:"resend_count"`
	WindowStart time.Time          `bson:"window_start"`
}

// Store manages access code records.
type Store struct {
	c      *mongo.Collection
	expiry time.Duration
}

// New creates a Store with the given code expiry. A non-positive expiry
// falls back to DefaultExpiry.
func New(db *mongo.Database, expiry time.Duration) *Store {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Store{c: db.Collection("access_codes"), expiry: expiry}
}

// Expiry returns the code lifetime, for the email copy.
func (s *Store) Expiry() time.Duration {
	return s.expiry
}

// EnsureIndexes creates the user lookup index and the TTL index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName("idx_accesscodes_user"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("idx_accesscodes_expires_ttl").SetExpireAfterSeconds(0),
		},
	})
	return err
}

// Create generates a fresh code for the user, replacing any pending one. The
// plain code is returned exactly once for the outgoing email. A resend
// carries the previous resend count forward and is capped per window.
func (s *Store) Create(ctx context.Context, userID primitive.ObjectID, email string, isResend bool) (string, error) {
	now := time.Now().UTC()

	var existing AccessCode
	err := s.c.FindOne(ctx, bson.M{"user_id": userID}).Decode(&existing)
	existingFound := err == nil
	if err != nil && err != mongo.ErrNoDocuments {
		return "", err
	}

	if isResend && existingFound && now.Before(existing.WindowStart.Add(ResendWindow)) {
		if existing.ResendCount >= MaxResends {
			return "", ErrTooManyResends
		}
	}

	code := generateCode()
	hash, err := bcrypt.GenerateFromPassword([]byte(code), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash code: %w", err)
	}

	resendCount := 0
	windowStart := now
	if existingFound && now.Before(existing.WindowStart.Add(ResendWindow)) {
		windowStart = existing.WindowStart
		resendCount = existing.ResendCount
		if isResend {
			resendCount++
		}
	}

	// One pending code per user.
	if _, err := s.c.DeleteMany(ctx, bson.M{"user_id": userID}); err != nil {
		return "", err
	}

	rec := AccessCode{
		ID:          primitive.NewObjectID(),
		UserID:      userID,
		Email:       email,
		CodeHash:    string(hash),
		ExpiresAt:   now.Add(s.expiry),
		CreatedAt:   now,
		ResendCount: resendCount,
		WindowStart: windowStart,
	}
	if _, err := s.c.InsertOne(ctx, rec); err != nil {
		return "", fmt.Errorf("insert access code: %w", err)
	}
	return code, nil
}

// Verify checks a code for the user and deletes the record on success. Every
// check, right or wrong, consumes one attempt.
func (s *Store) Verify(ctx context.Context, userID primitive.ObjectID, code string) error {
	var rec AccessCode
	err := s.c.FindOne(ctx, bson.M{
		"user_id":    userID,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if rec.Attempts >= MaxVerifyAttempts {
		return ErrTooManyAttempts
	}
	if _, err := s.c.UpdateOne(ctx, bson.M{"_id": rec.ID}, bson.M{"$inc": bson.M{"attempts": 1}}); err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rec.CodeHash), []byte(code)); err != nil {
		return ErrInvalidCode
	}

	_, err = s.c.DeleteOne(ctx, bson.M{"_id": rec.ID})
	return err
}

// DeleteByUser removes any pending code for the user.
func (s *Store) DeleteByUser(ctx context.Context, userID primitive.ObjectID) error {
	_, err := s.c.DeleteMany(ctx, bson.M{"user_id": userID})
	return err
}

// generateCode returns a random 6-digit code. Panics if the system's
// cryptographic random number generator fails.
func generateCode() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand.Read failed: " + err.Error())
	}
	n := int(b[0])<<24 | int(b[1])<<16 | int(b[2])<<8 | int(b[3])
	if n < 0 {
		n = -n
	}
	code := (n % 900000) + 100000
	return fmt.Sprintf("%06d", code)
}
