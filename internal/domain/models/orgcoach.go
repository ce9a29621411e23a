// internal/domain/models/orgcoach.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrganizationCoach is a coach's membership and capacity envelope within one
// organization. The same coach user may hold memberships in several
// organizations, each with its own capacity ceiling and pool tags.
//
// Invariant: the number of non-archived engagements referencing this coach
// with a capacity-counted status never exceeds MaxEngagements. The selection
// transaction in store/engagements is the only writer allowed to grow that
// count.
type OrganizationCoach struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         primitive.ObjectID `bson:"user_id" json:"user_id"`
	OrganizationID primitive.ObjectID `bson:"organization_id" json:"organization_id"`

	DisplayName   string `bson:"display_name" json:"display_name"`
	DisplayNameCI string `bson:"display_name_ci" json:"display_name_ci"`

	// Bio is stored sanitized (see features/coaches); it may contain a
	// limited subset of HTML.
	Bio         string `bson:"bio,omitempty" json:"bio,omitempty"`
	BookingLink string `bson:"booking_link,omitempty" json:"booking_link,omitempty"`

	// Pools partitions coaches into disjoint eligible sets per program
	// family. Selection only draws from the pool matching the participant's
	// program.
	Pools []string `bson:"pools" json:"pools"`

	MaxEngagements int  `bson:"max_engagements" json:"max_engagements"`
	Active         bool `bson:"active" json:"active"`
	Archived       bool `bson:"archived,omitempty" json:"archived,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// CoachLoad pairs an OrganizationCoach with its live count of
// capacity-counted engagements. It is a point-in-time snapshot: the selection
// transaction re-derives the count under lock before committing.
type CoachLoad struct {
	OrganizationCoach `bson:",inline"`

	ActiveEngagements int `bson:"active_engagements" json:"active_engagements"`
}

// AtCapacity reports whether the snapshot shows no remaining slots.
func (c CoachLoad) AtCapacity() bool {
	return c.ActiveEngagements >= c.MaxEngagements
}
