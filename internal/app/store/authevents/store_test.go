package authevents_test

import (
	"sync"
	"testing"
	"time"

	"github.com/luminacoaching/lumina/internal/app/store/authevents"
	lockstore "github.com/luminacoaching/lumina/internal/app/store/locks"
	"github.com/luminacoaching/lumina/internal/testutil"
)

func newTestStore(t *testing.T) *authevents.Store {
	t.Helper()
	db := testutil.SetupTestDB(t)
	store := authevents.New(db, lockstore.New(db))

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes failed: %v", err)
	}
	return store
}

func TestConsume_AllowsUpToLimit(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for i := 0; i < 3; i++ {
		res, err := store.Consume(ctx, "pat@example.com", 3, time.Minute)
		if err != nil {
			t.Fatalf("Consume failed: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("call %d: expected allowed", i+1)
		}
	}

	res, err := store.Consume(ctx, "pat@example.com", 3, time.Minute)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if res.Allowed {
		t.Error("4th call within window should be blocked")
	}
	if res.RetryAfterSeconds <= 0 {
		t.Errorf("blocked result should carry positive retry-after, got %d", res.RetryAfterSeconds)
	}
}

func TestConsume_IndependentIdentifiers(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if res, err := store.Consume(ctx, "a@example.com", 1, time.Minute); err != nil || !res.Allowed {
		t.Fatalf("first identifier: allowed=%v err=%v", res.Allowed, err)
	}
	if res, err := store.Consume(ctx, "b@example.com", 1, time.Minute); err != nil || !res.Allowed {
		t.Errorf("second identifier should not share the first's window: allowed=%v err=%v", res.Allowed, err)
	}
}

func TestConsume_ConcurrentSameIdentifier(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	const attempts = 8
	const limit = 3

	var wg sync.WaitGroup
	allowed := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := store.Consume(ctx, "hot@example.com", limit, time.Minute)
			if err != nil {
				t.Errorf("Consume failed: %v", err)
				return
			}
			allowed <- res.Allowed
		}()
	}
	wg.Wait()
	close(allowed)

	wins := 0
	for ok := range allowed {
		if ok {
			wins++
		}
	}
	if wins != limit {
		t.Errorf("%d concurrent calls allowed, want exactly %d", wins, limit)
	}
}

func TestConsumeToken_OnceOnly(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	meta := authevents.ConsumeMeta{UserID: "u1", Email: "staff@example.com", IP: "1.2.3.4"}

	first, err := store.ConsumeToken(ctx, "token-value-1", meta)
	if err != nil {
		t.Fatalf("ConsumeToken failed: %v", err)
	}
	if !first {
		t.Fatal("first consumption should return true")
	}

	second, err := store.ConsumeToken(ctx, "token-value-1", meta)
	if err != nil {
		t.Fatalf("second ConsumeToken failed: %v", err)
	}
	if second {
		t.Error("second consumption of the same token should return false")
	}
}

func TestConsumeToken_DistinctTokensIndependent(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	var wg sync.WaitGroup
	results := make(chan bool, 2)
	for _, tok := range []string{"token-a", "token-b"} {
		wg.Add(1)
		go func(tok string) {
			defer wg.Done()
			ok, err := store.ConsumeToken(ctx, tok, authevents.ConsumeMeta{})
			if err != nil {
				t.Errorf("ConsumeToken(%s) failed: %v", tok, err)
				return
			}
			results <- ok
		}(tok)
	}
	wg.Wait()
	close(results)

	for ok := range results {
		if !ok {
			t.Error("distinct tokens must not block each other's first consumption")
		}
	}
}

func TestConsumeToken_ConcurrentSameToken(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	const attempts = 10
	var wg sync.WaitGroup
	wins := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.ConsumeToken(ctx, "raced-token", authevents.ConsumeMeta{})
			if err != nil {
				t.Errorf("ConsumeToken failed: %v", err)
				return
			}
			if ok {
				wins <- true
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
		t.Errorf("%d callers consumed the same token, want exactly 1", count)
	}
}
