// internal/domain/models/engagement.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Engagement statuses. An engagement is created in StatusInvited when the
// participant is imported, moves to StatusCoachSelected exactly once via the
// selection transaction, and is advanced by session-logging workflows after
// that.
const (
	StatusInvited       = "invited"
	StatusCoachSelected = "coach_selected"
	StatusInProgress    = "in_progress"
	StatusCompleted     = "completed"
	StatusOnHold        = "on_hold"
	StatusCanceled      = "canceled"
)

// CapacityCountedStatuses are the engagement statuses that count against a
// coach's max_engagements ceiling.
var CapacityCountedStatuses = []string{StatusCoachSelected, StatusInProgress, StatusOnHold}

// Engagement ties one participant to one coaching program instance and, once
// selected, one coach.
//
// StatusVersion is a monotonic counter incremented on every status change.
// Writers that change status must condition the update on the version they
// read (optimistic concurrency).
type Engagement struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ParticipantID  primitive.ObjectID `bson:"participant_id" json:"participant_id"`
	OrganizationID primitive.ObjectID `bson:"organization_id" json:"organization_id"`
	ProgramID      primitive.ObjectID `bson:"program_id" json:"program_id"`
	CohortID       primitive.ObjectID `bson:"cohort_id" json:"cohort_id"`

	// OrganizationCoachID is set by the selection transaction and is non-nil
	// for coach_selected, in_progress, completed, and on_hold engagements.
	// Canceled engagements keep the reference for the audit trail but never
	// count toward capacity.
	OrganizationCoachID *primitive.ObjectID `bson:"organization_coach_id,omitempty" json:"organization_coach_id,omitempty"`

	Status        string `bson:"status" json:"status"`
	StatusVersion int64  `bson:"status_version" json:"status_version"`

	Archived bool `bson:"archived,omitempty" json:"archived,omitempty"`

	CoachSelectedAt *time.Time `bson:"coach_selected_at,omitempty" json:"coach_selected_at,omitempty"`
	CreatedAt       time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `bson:"updated_at" json:"updated_at"`
}

// CountsTowardCapacity reports whether an engagement in the given status
// consumes one of its coach's max_engagements slots.
func CountsTowardCapacity(status string) bool {
	for _, s := range CapacityCountedStatuses {
		if s == status {
			return true
		}
	}
	return false
}
