// internal/domain/models/cohort.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Cohort is a time-boxed intake group within a program. Coach selection is
// only permitted inside the [CoachSelectionStart, CoachSelectionEnd) window.
type Cohort struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrganizationID primitive.ObjectID `bson:"organization_id" json:"organization_id"`
	ProgramID      primitive.ObjectID `bson:"program_id" json:"program_id"`

	Name   string `bson:"name" json:"name"`
	NameCI string `bson:"name_ci" json:"name_ci"`

	CoachSelectionStart time.Time `bson:"coach_selection_start" json:"coach_selection_start"`
	CoachSelectionEnd   time.Time `bson:"coach_selection_end" json:"coach_selection_end"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// SelectionOpen reports whether coach selection is allowed at the given
// instant. The end bound is exclusive: selection attempted at exactly
// CoachSelectionEnd is rejected.
func (c Cohort) SelectionOpen(now time.Time) bool {
	return !now.Before(c.CoachSelectionStart) && now.Before(c.CoachSelectionEnd)
}
