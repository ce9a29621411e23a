// internal/app/store/authevents/store.go

// Package authevents persists the security bookkeeping of the auth path:
// an append-only log of rate-limited events keyed by hashed identifiers, and
// one-time consumption records for magic-link tokens. Both key by a SHA-256
// hash so raw emails and raw tokens never land in the database.
package authevents

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	lockstore "github.com/luminacoaching/lumina/internal/app/store/locks"
	"github.com/luminacoaching/lumina/internal/app/system/ratelimit"
)

const (
	// lockTTL bounds how long a crashed limiter call can wedge one
	// identifier's key.
	lockTTL = 10 * time.Second
	// lockWait is the blocking-acquire budget. Contention here means two
	// concurrent requests for the same email or token, which is rare and
	// brief, so waiting (unlike the selection hot path) is fine.
	lockWait = 5 * time.Second
	// eventRetention drives the TTL index on the event log.
	eventRetention = 24 * time.Hour
)

// Event is one rate-limited hit in the append-only log.
type Event struct {
	Key       string    `bson:"key"` // SHA-256 of the sensitive identifier
	CreatedAt time.Time `bson:"created_at"`
}

// Consumption marks a one-time token as used. The unique index on TokenHash
// makes the insert the atomic "consume exactly once" step.
type Consumption struct {
	TokenHash  string    `bson:"token_hash"`
	UserID     string    `bson:"user_id,omitempty"`
	Email      string    `bson:"email,omitempty"`
	IP         string    `bson:"ip,omitempty"`
	UserAgent  string    `bson:"user_agent,omitempty"`
	ConsumedAt time.Time `bson:"consumed_at"`
}

// ConsumeMeta carries actor identity and request metadata into the
// consumption record for audit.
type ConsumeMeta struct {
	UserID    string
	Email     string
	IP        string
	UserAgent string
}

// Store manages the durable limiter log and token consumption records.
type Store struct {
	events       *mongo.Collection
	consumptions *mongo.Collection
	locks        *lockstore.Store
	now          func() time.Time
}

// New creates an auth events Store.
func New(db *mongo.Database, locks *lockstore.Store) *Store {
	return &Store{
		events:       db.Collection("auth_events"),
		consumptions: db.Collection("token_consumptions"),
		locks:        locks,
		now:          time.Now,
	}
}

// EnsureIndexes creates lookup, uniqueness, and TTL indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "key", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("idx_authevents_key_time"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetName("idx_authevents_ttl").SetExpireAfterSeconds(int32(eventRetention / time.Second)),
		},
	})
	if err != nil {
		return err
	}

	_, err = s.consumptions.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "token_hash", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("idx_consumptions_hash"),
	})
	return err
}

// HashIdentifier returns the hex SHA-256 of a sensitive identifier (an email
// address or token value) for use as a limiter or consumption key.
func HashIdentifier(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}

// Consume applies a sliding-window rate limit to the hashed identifier,
// durably and across instances. It takes the per-key lock so concurrent
// requests for the same identifier serialize, counts prior in-window hits
// from the log, and either appends a new hit (allowed) or reports when the
// oldest in-window hit ages out (blocked).
//
// Limit outcomes are values, not errors; err is only non-nil for storage
// failures.
func (s *Store) Consume(ctx context.Context, identifier string, maxRequests int, window time.Duration) (ratelimit.Result, error) {
	key := HashIdentifier(identifier)

	lease, err := s.locks.Acquire(ctx, "rl:"+key, lockTTL, lockWait)
	if err == lockstore.ErrNotAcquired {
		// Could not serialize with the competing caller; fail closed with a
		// small back-off rather than risking an uncounted hit.
		return ratelimit.Result{Allowed: false, RetryAfterSeconds: 1}, nil
	}
	if err != nil {
		return ratelimit.Result{}, err
	}
	defer func() { _ = s.locks.Release(ctx, lease) }()

	now := s.now().UTC()
	cutoff := now.Add(-window)

	// Strictly-greater-than boundary: a hit exactly one window old is
	// excluded from the count.
	filter := bson.M{"key": key, "created_at": bson.M{"$gt": cutoff}}
	count, err := s.events.CountDocuments(ctx, filter)
	if err != nil {
		return ratelimit.Result{}, err
	}

	if count >= int64(maxRequests) {
		var oldest Event
		opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}})
		if err := s.events.FindOne(ctx, filter, opts).Decode(&oldest); err != nil {
			return ratelimit.Result{}, err
		}
		wait := oldest.CreatedAt.Add(window).Sub(now)
		secs := int(wait / time.Second)
		if wait%time.Second != 0 {
			secs++
		}
		if secs < 1 {
			secs = 1
		}
		return ratelimit.Result{Allowed: false, RetryAfterSeconds: secs}, nil
	}

	if _, err := s.events.InsertOne(ctx, Event{Key: key, CreatedAt: now}); err != nil {
		return ratelimit.Result{}, err
	}
	return ratelimit.Result{Allowed: true, Remaining: maxRequests - int(count) - 1}, nil
}

// ConsumeToken records the first consumption of a one-time token and reports
// whether this call was that first consumption. The unique index on the
// token hash guarantees exactly one caller wins, however the attempts race;
// a replayed or double-clicked link observes false.
func (s *Store) ConsumeToken(ctx context.Context, tokenValue string, meta ConsumeMeta) (bool, error) {
	rec := Consumption{
		TokenHash:  HashIdentifier(tokenValue),
		UserID:     meta.UserID,
		Email:      meta.Email,
		IP:         meta.IP,
		UserAgent:  meta.UserAgent,
		ConsumedAt: s.now().UTC(),
	}

	if _, err := s.consumptions.InsertOne(ctx, rec); err != nil {
		if wafflemongo.IsDup(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
