// internal/app/system/coachpool/coachpool.go

// Package coachpool implements batch selection of candidate coaches from an
// eligible pool. It is pure: no I/O, deterministic for a given random source.
// Callers load the capacity-annotated pool, hand it in together with the ids
// the participant has already been shown, and persist the returned selection
// into the session themselves.
package coachpool

import (
	"math/rand"

	"github.com/luminacoaching/lumina/internal/domain/models"
)

// Batch is the outcome of PickBatch.
//
// PoolExhausted is true when previously shown coaches had to be repeated to
// fill the batch. A short batch of all-unseen coaches leaves it false, and so
// does an empty available pool; "everyone is at capacity" is a distinct
// condition the caller surfaces separately.
type Batch struct {
	Selected      []models.CoachLoad
	PoolExhausted bool
}

// PickBatch selects up to count coaches from pool, preferring coaches the
// participant has not seen yet. Coaches at capacity are never selectable.
// The shown set is not mutated; merging the selection back into the session
// is the caller's job.
func PickBatch(pool []models.CoachLoad, shown map[string]bool, count int, rng *rand.Rand) Batch {
	if count <= 0 {
		return Batch{Selected: []models.CoachLoad{}}
	}

	var unseen, seen []models.CoachLoad
	for _, c := range pool {
		if c.AtCapacity() {
			continue
		}
		if shown[c.ID.Hex()] {
			seen = append(seen, c)
		} else {
			unseen = append(unseen, c)
		}
	}

	shuffle(unseen, rng)

	if len(unseen) >= count {
		return Batch{Selected: unseen[:count]}
	}

	available := len(unseen) + len(seen)
	if available == 0 {
		return Batch{Selected: []models.CoachLoad{}}
	}

	// Not enough unseen coaches: take them all, then refill from coaches the
	// participant has already been shown. The exhausted flag tracks actual
	// repeats; a short batch of all-unseen coaches just means the available
	// pool is small.
	selected := unseen
	repeated := false
	shuffle(seen, rng)
	for _, c := range seen {
		if len(selected) >= count {
			break
		}
		selected = append(selected, c)
		repeated = true
	}
	return Batch{Selected: selected, PoolExhausted: repeated}
}

// shuffle is a Fisher–Yates shuffle over the slice.
func shuffle(coaches []models.CoachLoad, rng *rand.Rand) {
	rng.Shuffle(len(coaches), func(i, j int) {
		coaches[i], coaches[j] = coaches[j], coaches[i]
	})
}
