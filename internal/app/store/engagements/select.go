// internal/app/store/engagements/select.go
package engagements

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/luminacoaching/lumina/internal/app/store/cohorts"
	"github.com/luminacoaching/lumina/internal/app/store/orgcoaches"
	"github.com/luminacoaching/lumina/internal/app/system/txn"
	"github.com/luminacoaching/lumina/internal/domain/models"
)

// Outcome classifies a selection attempt. Every rejection is a value the
// handler can map to a stable response code; errors are reserved for storage
// failures.
type Outcome string

const (
	OutcomeSelected        Outcome = "SELECTED"
	OutcomeWindowClosed    Outcome = "WINDOW_CLOSED"
	OutcomeAlreadySelected Outcome = "ALREADY_SELECTED"
	OutcomeCapacityFull    Outcome = "CAPACITY_FULL"
	OutcomeInvalidSession  Outcome = "INVALID_SESSION"
)

// SelectionResult is the result of a selection attempt. Engagement and Coach
// are populated when Outcome is OutcomeSelected or OutcomeAlreadySelected
// (the latter with the previously selected coach, so a double-submitted form
// can still render the confirmation). Coach is nil when an already-selected
// engagement's coach record has since been removed.
type SelectionResult struct {
	Outcome    Outcome
	Engagement models.Engagement
	Coach      *models.OrganizationCoach
}

// coachLockTTL bounds how long a crashed selection attempt can hold a
// coach's lock. It only needs to outlive one count-and-commit round trip.
const coachLockTTL = 15 * time.Second

// SelectCoach assigns a coach to the participant's engagement, enforcing the
// cohort selection window, one selection per engagement, and the coach's
// capacity ceiling under concurrency.
//
// The capacity guarantee is carried by the per-coach lock: the lock is taken
// without waiting (a busy lock reads as the coach being claimed right now),
// the live slot count runs while holding it, and the commit is additionally
// conditioned on the status version read at the top so a stale attempt can
// never overwrite a concurrent selection.
func (s *Store) SelectCoach(ctx context.Context, engagementID, participantID, orgID, coachID primitive.ObjectID) (SelectionResult, error) {
	e, err := s.GetForParticipant(ctx, engagementID, participantID, orgID)
	if err == ErrNotFound {
		return SelectionResult{Outcome: OutcomeInvalidSession}, nil
	}
	if err != nil {
		return SelectionResult{}, err
	}

	cohort, err := s.cohorts.GetByID(ctx, e.CohortID)
	if err == cohorts.ErrNotFound {
		return SelectionResult{Outcome: OutcomeInvalidSession}, nil
	}
	if err != nil {
		return SelectionResult{}, err
	}
	if !cohort.SelectionOpen(s.now().UTC()) {
		return SelectionResult{Outcome: OutcomeWindowClosed}, nil
	}

	switch e.Status {
	case models.StatusInvited:
		// proceed
	case models.StatusCoachSelected, models.StatusInProgress, models.StatusOnHold, models.StatusCompleted:
		// Any status past invited has a coach assigned; a re-submitted form
		// gets the existing assignment back instead of an auth failure.
		return s.alreadySelected(ctx, e)
	default:
		return SelectionResult{Outcome: OutcomeInvalidSession}, nil
	}

	program, err := s.programs.GetByID(ctx, e.ProgramID)
	if err != nil {
		return SelectionResult{}, err
	}

	// Re-load the coach scoped to the engagement's organization and pool. A
	// coach deactivated or re-pooled after the batch was shown reads as
	// unavailable, not as a broken session: the participant keeps their
	// session and picks someone else.
	coach, err := s.coaches.GetEligible(ctx, coachID, orgID, program.Pool)
	if err == orgcoaches.ErrNotFound {
		return SelectionResult{Outcome: OutcomeCapacityFull}, nil
	}
	if err != nil {
		return SelectionResult{}, err
	}

	lease, ok, err := s.locks.TryAcquire(ctx, "coach:"+coachID.Hex(), coachLockTTL)
	if err != nil {
		return SelectionResult{}, err
	}
	if !ok {
		// Someone else is mid-selection for this coach. Treat the contended
		// slot as taken rather than queueing behind the winner.
		return SelectionResult{Outcome: OutcomeCapacityFull}, nil
	}
	defer func() { _ = s.locks.Release(ctx, lease) }()

	var result SelectionResult
	txnErr := txn.WithTransaction(ctx, s.client, func(tc context.Context) error {
		count, err := s.CountActiveForCoach(tc, coachID)
		if err != nil {
			return err
		}
		if count >= int64(coach.MaxEngagements) {
			result = SelectionResult{Outcome: OutcomeCapacityFull}
			return nil
		}

		now := s.now().UTC()
		res, err := s.c.UpdateOne(tc,
			bson.M{
				"_id":            e.ID,
				"status":         models.StatusInvited,
				"status_version": e.StatusVersion,
			},
			bson.M{
				"$set": bson.M{
					"organization_coach_id": coachID,
					"status":                models.StatusCoachSelected,
					"coach_selected_at":     now,
					"updated_at":            now,
				},
				"$inc": bson.M{"status_version": 1},
			},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			// Lost the version race. Re-read and classify outside the lock's
			// happy path.
			current, err := s.GetByID(tc, e.ID)
			if err == ErrNotFound {
				result = SelectionResult{Outcome: OutcomeInvalidSession}
				return nil
			}
			if err != nil {
				return err
			}
			if current.OrganizationCoachID != nil && current.Status != models.StatusCanceled {
				r, err := s.alreadySelected(tc, current)
				if err != nil {
					return err
				}
				result = r
				return nil
			}
			result = SelectionResult{Outcome: OutcomeInvalidSession}
			return nil
		}

		e.OrganizationCoachID = &coachID
		e.Status = models.StatusCoachSelected
		e.StatusVersion++
		e.CoachSelectedAt = &now
		e.UpdatedAt = now
		result = SelectionResult{Outcome: OutcomeSelected, Engagement: e, Coach: &coach}
		return nil
	})
	if txnErr != nil {
		return SelectionResult{}, txnErr
	}
	return result, nil
}

// alreadySelected builds the result for an engagement that has a coach,
// resolving the coach document so the caller can render the existing
// assignment.
func (s *Store) alreadySelected(ctx context.Context, e models.Engagement) (SelectionResult, error) {
	if e.OrganizationCoachID == nil {
		return SelectionResult{}, fmt.Errorf("engagement %s is %s with no coach reference", e.ID.Hex(), e.Status)
	}
	coach, err := s.coaches.GetByID(ctx, *e.OrganizationCoachID)
	if err == orgcoaches.ErrNotFound {
		// The assignment stands even if the coach record was since archived
		// out of reach; return what we have.
		return SelectionResult{Outcome: OutcomeAlreadySelected, Engagement: e}, nil
	}
	if err != nil {
		return SelectionResult{}, err
	}
	return SelectionResult{Outcome: OutcomeAlreadySelected, Engagement: e, Coach: &coach}, nil
}
