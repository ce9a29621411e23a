// internal/app/store/locks/lockstore.go

// Package lockstore provides per-key exclusive locks backed by lease
// documents in a MongoDB collection. MongoDB has no native advisory locks;
// a lease document with a takeover-on-expiry filter gives the same essential
// property the selection path needs: acquisition either succeeds immediately
// or fails immediately, never queues.
//
// Correctness comes from the single-document atomicity of the upsert, not
// from the TTL index; the index only garbage-collects leases abandoned by a
// crashed holder.
package lockstore

import (
	"context"
	"errors"
	"time"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotAcquired is returned by Acquire when the lock stayed contended for
// the whole wait budget.
var ErrNotAcquired = errors.New("lock not acquired")

// pollInterval is the retry cadence for the blocking Acquire variant.
const pollInterval = 25 * time.Millisecond

// Lease is a held lock. Only the owner recorded in the lease may release it.
type Lease struct {
	Key       string
	Owner     string
	ExpiresAt time.Time
}

// Store manages lock leases.
type Store struct {
	c   *mongo.Collection
	now func() time.Time
}

// New creates a lock Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("locks"), now: time.Now}
}

// EnsureIndexes creates the TTL index that reaps expired leases.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetName("idx_locks_expires_ttl").SetExpireAfterSeconds(0),
	})
	return err
}

// TryAcquire attempts to take the lock for key without waiting. It returns
// (lease, true) on success and (nil, false) when another holder has an
// unexpired lease. The ttl bounds how long a crashed holder can wedge the
// key.
func (s *Store) TryAcquire(ctx context.Context, key string, ttl time.Duration) (*Lease, bool, error) {
	now := s.now().UTC()
	lease := &Lease{
		Key:       key,
		Owner:     uuid.NewString(),
		ExpiresAt: now.Add(ttl),
	}

	// Upsert with an expiry filter: if a live lease exists the filter matches
	// nothing and the insert collides with the _id, which reads as
	// contention. If the existing lease has expired we take it over in place.
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": key, "expires_at": bson.M{"$lte": now}},
		bson.M{"$set": bson.M{"owner": lease.Owner, "expires_at": lease.ExpiresAt}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return nil, false, nil
	}
	return lease, true, nil
}

// Acquire takes the lock for key, waiting up to maxWait. It is used on paths
// where contention is expected to be rare and brief (same email, same token);
// the selection hot path uses TryAcquire instead and fails fast.
func (s *Store) Acquire(ctx context.Context, key string, ttl, maxWait time.Duration) (*Lease, error) {
	deadline := s.now().Add(maxWait)
	for {
		lease, ok, err := s.TryAcquire(ctx, key, ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			return lease, nil
		}
		if s.now().After(deadline) {
			return nil, ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// Release frees the lease. Releasing a lease that already expired and was
// taken over by someone else is a no-op: the owner check prevents deleting a
// lock we no longer hold.
func (s *Store) Release(ctx context.Context, lease *Lease) error {
	if lease == nil {
		return nil
	}
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": lease.Key, "owner": lease.Owner})
	return err
}
