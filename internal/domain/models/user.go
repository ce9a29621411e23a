// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Roles.
const (
	RoleAdmin       = "admin"
	RoleCoach       = "coach"
	RoleParticipant = "participant"
)

// User represents admins, coaches, and participants.
//
// Participants never hold a portal session; they authenticate with an email
// access code and carry their state in the signed participant cookie. Admins
// and coaches sign in via magic link or Google and get a portal session.
type User struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName   string             `bson:"full_name" json:"full_name"`
	FullNameCI string             `bson:"full_name_ci" json:"full_name_ci"` // lowercase, diacritics-stripped
	Email      string             `bson:"email" json:"email"`
	EmailCI    string             `bson:"email_ci" json:"email_ci"`
	Role       string             `bson:"role" json:"role"` // admin | coach | participant
	Status     string             `bson:"status,omitempty" json:"status,omitempty"`

	// OrganizationID scopes coaches and participants. Admins may be global.
	OrganizationID *primitive.ObjectID `bson:"organization_id,omitempty" json:"organization_id,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
