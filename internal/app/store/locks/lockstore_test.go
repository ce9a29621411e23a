package lockstore_test

import (
	"sync"
	"testing"
	"time"

	lockstore "github.com/luminacoaching/lumina/internal/app/store/locks"
	"github.com/luminacoaching/lumina/internal/testutil"
)

func TestTryAcquire_Exclusive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := lockstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	lease, ok, err := store.TryAcquire(ctx, "coach:abc", 30*time.Second)
	if err != nil {
		t.Fatalf("TryAcquire failed: %v", err)
	}
	if !ok || lease == nil {
		t.Fatal("expected to acquire an uncontended lock")
	}

	_, ok, err = store.TryAcquire(ctx, "coach:abc", 30*time.Second)
	if err != nil {
		t.Fatalf("second TryAcquire failed: %v", err)
	}
	if ok {
		t.Error("acquired a lock that is already held")
	}

	// A different key is unaffected.
	_, ok, err = store.TryAcquire(ctx, "coach:xyz", 30*time.Second)
	if err != nil {
		t.Fatalf("TryAcquire other key failed: %v", err)
	}
	if !ok {
		t.Error("lock on one key blocked another key")
	}
}

func TestTryAcquire_AfterRelease(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := lockstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	lease, ok, err := store.TryAcquire(ctx, "coach:abc", 30*time.Second)
	if err != nil || !ok {
		t.Fatalf("TryAcquire failed: ok=%v err=%v", ok, err)
	}
	if err := store.Release(ctx, lease); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	_, ok, err = store.TryAcquire(ctx, "coach:abc", 30*time.Second)
	if err != nil {
		t.Fatalf("reacquire failed: %v", err)
	}
	if !ok {
		t.Error("expected to reacquire a released lock")
	}
}

func TestTryAcquire_ExpiredLeaseTakeover(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := lockstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// A very short lease simulates a crashed holder.
	old, ok, err := store.TryAcquire(ctx, "coach:abc", time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("TryAcquire failed: ok=%v err=%v", ok, err)
	}
	time.Sleep(10 * time.Millisecond)

	lease, ok, err := store.TryAcquire(ctx, "coach:abc", 30*time.Second)
	if err != nil {
		t.Fatalf("takeover TryAcquire failed: %v", err)
	}
	if !ok {
		t.Fatal("expected to take over an expired lease")
	}

	// The old holder's release must not free the new holder's lock.
	if err := store.Release(ctx, old); err != nil {
		t.Fatalf("stale Release failed: %v", err)
	}
	_, ok, err = store.TryAcquire(ctx, "coach:abc", 30*time.Second)
	if err != nil {
		t.Fatalf("TryAcquire failed: %v", err)
	}
	if ok {
		t.Error("stale release freed a lock held by someone else")
	}

	_ = lease
}

func TestTryAcquire_ConcurrentSingleWinner(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := lockstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	const attempts = 16
	var wg sync.WaitGroup
	wins := make(chan *lockstore.Lease, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, ok, err := store.TryAcquire(ctx, "coach:hot", 30*time.Second)
			if err != nil {
				t.Errorf("TryAcquire failed: %v", err)
				return
			}
			if ok {
				wins <- lease
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Errorf("%d goroutines acquired the same lock, want exactly 1", count)
	}
}

func TestAcquire_WaitsForRelease(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := lockstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	lease, ok, err := store.TryAcquire(ctx, "email:hash", 30*time.Second)
	if err != nil || !ok {
		t.Fatalf("TryAcquire failed: ok=%v err=%v", ok, err)
	}

	done := make(chan error, 1)
	go func() {
		l, err := store.Acquire(ctx, "email:hash", 30*time.Second, 5*time.Second)
		if err == nil {
			err = store.Release(ctx, l)
		}
		done <- err
	}()

	time.Sleep(100 * time.Millisecond)
	if err := store.Release(ctx, lease); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("blocking Acquire failed after release: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("blocking Acquire did not observe the release")
	}
}

func TestAcquire_TimesOut(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := lockstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, ok, err := store.TryAcquire(ctx, "email:hash", 30*time.Second)
	if err != nil || !ok {
		t.Fatalf("TryAcquire failed: ok=%v err=%v", ok, err)
	}

	_, err = store.Acquire(ctx, "email:hash", 30*time.Second, 200*time.Millisecond)
	if err != lockstore.ErrNotAcquired {
		t.Errorf("expected ErrNotAcquired, got %v", err)
	}
}
