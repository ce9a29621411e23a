// internal/app/store/engagements/store.go

// Package engagements manages engagement documents and the capacity-safe
// coach selection transaction, the only writer that moves an engagement from
// invited to coach_selected.
package engagements

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/luminacoaching/lumina/internal/app/store/cohorts"
	lockstore "github.com/luminacoaching/lumina/internal/app/store/locks"
	"github.com/luminacoaching/lumina/internal/app/store/orgcoaches"
	"github.com/luminacoaching/lumina/internal/app/store/programs"
	"github.com/luminacoaching/lumina/internal/domain/models"
)

// ErrNotFound is returned when an engagement does not exist or is out of the
// requested scope.
var ErrNotFound = errors.New("engagement not found")

// ErrStaleVersion is returned when a version-conditioned update matched
// nothing because another writer changed the status first.
var ErrStaleVersion = errors.New("engagement status changed concurrently")

// Store manages engagement documents.
type Store struct {
	c        *mongo.Collection
	client   *mongo.Client
	coaches  *orgcoaches.Store
	cohorts  *cohorts.Store
	programs *programs.Store
	locks    *lockstore.Store
	now      func() time.Time
}

// New creates an engagement Store.
func New(db *mongo.Database, coaches *orgcoaches.Store, cohortStore *cohorts.Store, programStore *programs.Store, locks *lockstore.Store) *Store {
	return &Store{
		c:        db.Collection("engagements"),
		client:   db.Client(),
		coaches:  coaches,
		cohorts:  cohortStore,
		programs: programStore,
		locks:    locks,
		now:      time.Now,
	}
}

// EnsureIndexes creates engagement lookup indexes. The coach+status index
// also backs the in-lock capacity count on the selection path.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "participant_id", Value: 1}, {Key: "organization_id", Value: 1}},
			Options: options.Index().SetName("idx_engagements_participant"),
		},
		{
			Keys:    bson.D{{Key: "organization_coach_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_engagements_coach_status"),
		},
		{
			Keys:    bson.D{{Key: "cohort_id", Value: 1}},
			Options: options.Index().SetName("idx_engagements_cohort"),
		},
	})
	return err
}

// GetByID loads an engagement by id.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Engagement, error) {
	var e models.Engagement
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&e)
	if err == mongo.ErrNoDocuments {
		return models.Engagement{}, ErrNotFound
	}
	if err != nil {
		return models.Engagement{}, err
	}
	return e, nil
}

// GetForParticipant loads a non-archived engagement scoped to the participant
// and organization it belongs to. Session handlers use this so a forged or
// stale engagement id in a cookie cannot reach someone else's engagement.
func (s *Store) GetForParticipant(ctx context.Context, id, participantID, orgID primitive.ObjectID) (models.Engagement, error) {
	var e models.Engagement
	err := s.c.FindOne(ctx, bson.M{
		"_id":             id,
		"participant_id":  participantID,
		"organization_id": orgID,
		"archived":        bson.M{"$ne": true},
	}).Decode(&e)
	if err == mongo.ErrNoDocuments {
		return models.Engagement{}, ErrNotFound
	}
	if err != nil {
		return models.Engagement{}, err
	}
	return e, nil
}

// FindInvitedByParticipant returns the participant's open invited engagement
// in the organization, if any. The access-code sign-in uses this to bind the
// participant session to an engagement.
func (s *Store) FindInvitedByParticipant(ctx context.Context, participantID, orgID primitive.ObjectID) (models.Engagement, error) {
	var e models.Engagement
	err := s.c.FindOne(ctx, bson.M{
		"participant_id":  participantID,
		"organization_id": orgID,
		"status":          bson.M{"$in": []string{models.StatusInvited, models.StatusCoachSelected}},
		"archived":        bson.M{"$ne": true},
	}, options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})).Decode(&e)
	if err == mongo.ErrNoDocuments {
		return models.Engagement{}, ErrNotFound
	}
	if err != nil {
		return models.Engagement{}, err
	}
	return e, nil
}

// ListByOrg returns an organization's non-archived engagements, newest first.
func (s *Store) ListByOrg(ctx context.Context, orgID primitive.ObjectID) ([]models.Engagement, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{
		"organization_id": orgID,
		"archived":        bson.M{"$ne": true},
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Engagement
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountActiveForCoach returns the number of non-archived engagements holding
// one of the coach's capacity slots.
func (s *Store) CountActiveForCoach(ctx context.Context, coachID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{
		"organization_coach_id": coachID,
		"status":                bson.M{"$in": models.CapacityCountedStatuses},
		"archived":              bson.M{"$ne": true},
	})
}

// Create inserts an engagement in the invited state. Participant import is
// the normal caller.
func (s *Store) Create(ctx context.Context, participantID, orgID, programID, cohortID primitive.ObjectID) (models.Engagement, error) {
	now := s.now().UTC()
	e := models.Engagement{
		ID:             primitive.NewObjectID(),
		ParticipantID:  participantID,
		OrganizationID: orgID,
		ProgramID:      programID,
		CohortID:       cohortID,
		Status:         models.StatusInvited,
		StatusVersion:  1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := s.c.InsertOne(ctx, e); err != nil {
		return models.Engagement{}, err
	}
	return e, nil
}

// UpdateStatus moves an engagement to a new status, conditioned on the status
// version the caller read. Admin workflows (in_progress, completed, on_hold,
// canceled) go through here; coach selection does not.
func (s *Store) UpdateStatus(ctx context.Context, id primitive.ObjectID, fromVersion int64, toStatus string) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "status_version": fromVersion},
		bson.M{
			"$set": bson.M{"status": toStatus, "updated_at": s.now().UTC()},
			"$inc": bson.M{"status_version": 1},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, err := s.GetByID(ctx, id); err == ErrNotFound {
			return ErrNotFound
		}
		return ErrStaleVersion
	}
	return nil
}

// Cancel moves an engagement to canceled. The coach reference is kept for the
// audit trail; the status change alone frees the capacity slot.
func (s *Store) Cancel(ctx context.Context, id primitive.ObjectID, fromVersion int64) error {
	return s.UpdateStatus(ctx, id, fromVersion, models.StatusCanceled)
}
