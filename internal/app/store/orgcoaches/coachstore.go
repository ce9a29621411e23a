// internal/app/store/orgcoaches/coachstore.go
package orgcoaches

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

// ErrNotFound is returned when a coach membership does not exist or is out
// of the requested scope.
var ErrNotFound = errors.New("organization coach not found")

// Store manages coach memberships and the capacity-annotated pool reads the
// selection flow depends on.
type Store struct {
	c  *mongo.Collection
	db *mongo.Database
}

// New creates a coach Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("org_coaches"), db: db}
}

// EnsureIndexes creates pool lookup indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.c.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "organization_id", Value: 1}, {Key: "pools", Value: 1}, {Key: "active", Value: 1}},
			Options: options.Index().SetName("idx_orgcoaches_pool"),
		},
		{
			Keys:    bson.D{{Key: "organization_id", Value: 1}, {Key: "display_name_ci", Value: 1}},
			Options: options.Index().SetName("idx_orgcoaches_name"),
		},
	})
	return err
}

// GetByID loads a coach membership by id.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.OrganizationCoach, error) {
	var oc models.OrganizationCoach
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&oc)
	if err == mongo.ErrNoDocuments {
		return models.OrganizationCoach{}, ErrNotFound
	}
	if err != nil {
		return models.OrganizationCoach{}, err
	}
	return oc, nil
}

// GetEligible loads a coach scoped to the organization and pool, active and
// non-archived. The selection transaction uses this re-load to defend
// against a coach removed from the pool between batch display and selection.
func (s *Store) GetEligible(ctx context.Context, coachID, orgID primitive.ObjectID, pool string) (models.OrganizationCoach, error) {
	var oc models.OrganizationCoach
	err := s.c.FindOne(ctx, bson.M{
		"_id":             coachID,
		"organization_id": orgID,
		"pools":           pool,
		"active":          true,
		"archived":        bson.M{"$ne": true},
	}).Decode(&oc)
	if err == mongo.ErrNoDocuments {
		return models.OrganizationCoach{}, ErrNotFound
	}
	if err != nil {
		return models.OrganizationCoach{}, err
	}
	return oc, nil
}

// ListPool returns the eligible pool for an organization and pool tag, each
// coach annotated with its live count of capacity-counted engagements. The
// result is a snapshot: anything acting on it must re-validate capacity
// inside the selection transaction.
func (s *Store) ListPool(ctx context.Context, orgID primitive.ObjectID, pool string) ([]models.CoachLoad, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"organization_id": orgID,
			"pools":           pool,
			"active":          true,
			"archived":        bson.M{"$ne": true},
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from": "engagements",
			"let":  bson.M{"coach_id": "$_id"},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$organization_coach_id", "$$coach_id"}},
					bson.M{"$in": bson.A{"$status", models.CapacityCountedStatuses}},
					bson.M{"$ne": bson.A{"$archived", true}},
				}}}},
				bson.M{"$count": "n"},
			},
			"as": "load",
		}}},
		{{Key: "$addFields", Value: bson.M{
			"active_engagements": bson.M{"$ifNull": bson.A{
				bson.M{"$arrayElemAt": bson.A{"$load.n", 0}}, 0,
			}},
		}}},
		{{Key: "$unset", Value: "load"}},
		{{Key: "$sort", Value: bson.D{{Key: "display_name_ci", Value: 1}}}},
	}

	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.CoachLoad
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByOrg returns all coach memberships for an organization with live
// load, archived ones excluded. Used by the roster admin.
func (s *Store) ListByOrg(ctx context.Context, orgID primitive.ObjectID) ([]models.CoachLoad, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"organization_id": orgID,
			"archived":        bson.M{"$ne": true},
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from": "engagements",
			"let":  bson.M{"coach_id": "$_id"},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$organization_coach_id", "$$coach_id"}},
					bson.M{"$in": bson.A{"$status", models.CapacityCountedStatuses}},
					bson.M{"$ne": bson.A{"$archived", true}},
				}}}},
				bson.M{"$count": "n"},
			},
			"as": "load",
		}}},
		{{Key: "$addFields", Value: bson.M{
			"active_engagements": bson.M{"$ifNull": bson.A{
				bson.M{"$arrayElemAt": bson.A{"$load.n", 0}}, 0,
			}},
		}}},
		{{Key: "$unset", Value: "load"}},
		{{Key: "$sort", Value: bson.D{{Key: "display_name_ci", Value: 1}}}},
	}

	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.CoachLoad
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create inserts a coach membership.
func (s *Store) Create(ctx context.Context, oc models.OrganizationCoach) (models.OrganizationCoach, error) {
	now := time.Now().UTC()
	oc.ID = primitive.NewObjectID()
	oc.DisplayNameCI = text.Fold(oc.DisplayName)
	if oc.MaxEngagements < 0 {
		oc.MaxEngagements = 0
	}
	oc.CreatedAt = now
	oc.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, oc); err != nil {
		return models.OrganizationCoach{}, err
	}
	return oc, nil
}

// UpdateProfile updates the presentation and capacity fields an admin may
// edit. The bio is expected to arrive already sanitized.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, displayName, bio, bookingLink string, pools []string, maxEngagements int, active bool) error {
	set := bson.M{
		"bio":             bio,
		"booking_link":    bookingLink,
		"pools":           pools,
		"max_engagements": maxEngagements,
		"active":          active,
		"updated_at":      time.Now().UTC(),
	}
	if displayName != "" {
		set["display_name"] = displayName
		set["display_name_ci"] = text.Fold(displayName)
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Archive retires a coach membership. Archived coaches drop out of every
// pool read; existing engagements keep their reference.
func (s *Store) Archive(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"archived":   true,
		"active":     false,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
