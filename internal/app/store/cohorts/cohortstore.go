// internal/app/store/cohorts/cohortstore.go
package cohorts

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/luminacoaching/lumina/internal/domain/models"
)

// ErrNotFound is returned when a cohort does not exist.
var ErrNotFound = errors.New("cohort not found")

// Store manages cohort documents.
type Store struct {
	c *mongo.Collection
}

// New creates a cohort Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("cohorts")}
}

// EnsureIndexes creates cohort lookup indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "organization_id", Value: 1}, {Key: "program_id", Value: 1}},
		Options: options.Index().SetName("idx_cohorts_org_program"),
	})
	return err
}

// GetByID loads a cohort by id.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Cohort, error) {
	var c models.Cohort
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return models.Cohort{}, ErrNotFound
	}
	if err != nil {
		return models.Cohort{}, err
	}
	return c, nil
}

// ListByProgram returns a program's cohorts newest window first.
func (s *Store) ListByProgram(ctx context.Context, programID primitive.ObjectID) ([]models.Cohort, error) {
	opts := options.Find().SetSort(bson.D{{Key: "coach_selection_start", Value: -1}})
	cur, err := s.c.Find(ctx, bson.M{"program_id": programID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Cohort
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create inserts a cohort.
func (s *Store) Create(ctx context.Context, c models.Cohort) (models.Cohort, error) {
	now := time.Now().UTC()
	c.ID = primitive.NewObjectID()
	c.NameCI = text.Fold(c.Name)
	c.CreatedAt = now
	c.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, c); err != nil {
		return models.Cohort{}, err
	}
	return c, nil
}

// SetSelectionWindow moves a cohort's selection window.
func (s *Store) SetSelectionWindow(ctx context.Context, id primitive.ObjectID, start, end time.Time) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"coach_selection_start": start,
		"coach_selection_end":   end,
		"updated_at":            time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
