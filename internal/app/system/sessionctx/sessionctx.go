// internal/app/system/sessionctx/sessionctx.go

// Package sessionctx assembles the full server-side view behind a participant
// session: the engagement, the participant, the program and cohort it belongs
// to, and the selected coach with live load once one exists. Handlers rebuild
// this on every request instead of trusting anything in the cookie beyond the
// identifiers.
package sessionctx

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/luminacoaching/lumina/internal/app/store/cohorts"
	"github.com/luminacoaching/lumina/internal/app/store/engagements"
	"github.com/luminacoaching/lumina/internal/app/store/orgcoaches"
	"github.com/luminacoaching/lumina/internal/app/store/programs"
	userstore "github.com/luminacoaching/lumina/internal/app/store/users"
	"github.com/luminacoaching/lumina/internal/domain/models"
)

// ErrNotFound is returned when any referenced document is missing or out of
// scope. Handlers treat it as an invalid session rather than distinguishing
// which piece disappeared.
var ErrNotFound = errors.New("session context not found")

// Context is the assembled view.
type Context struct {
	Engagement  models.Engagement
	Participant models.User
	Program     models.Program
	Cohort      models.Cohort

	// SelectionOpen reflects the cohort window at assembly time.
	SelectionOpen bool

	// Coach is nil until the engagement has a selected coach.
	Coach *models.CoachLoad
}

// Loader resolves session contexts from the stores.
type Loader struct {
	engagements *engagements.Store
	users       *userstore.Store
	programs    *programs.Store
	cohorts     *cohorts.Store
	coaches     *orgcoaches.Store
}

// NewLoader creates a Loader.
func NewLoader(e *engagements.Store, u *userstore.Store, p *programs.Store, c *cohorts.Store, oc *orgcoaches.Store) *Loader {
	return &Loader{engagements: e, users: u, programs: p, cohorts: c, coaches: oc}
}

// Load assembles the context for a participant session. The engagement read
// is scoped to the participant and organization, so identifiers lifted from
// someone else's cookie resolve to ErrNotFound, not to their data.
func (l *Loader) Load(ctx context.Context, engagementID, participantID, orgID primitive.ObjectID) (*Context, error) {
	e, err := l.engagements.GetForParticipant(ctx, engagementID, participantID, orgID)
	if err == engagements.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	participant, err := l.users.GetByID(ctx, participantID)
	if err == userstore.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	program, err := l.programs.GetByID(ctx, e.ProgramID)
	if err == programs.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cohort, err := l.cohorts.GetByID(ctx, e.CohortID)
	if err == cohorts.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	out := &Context{
		Engagement:    e,
		Participant:   *participant,
		Program:       program,
		Cohort:        cohort,
		SelectionOpen: cohort.SelectionOpen(time.Now().UTC()),
	}

	if e.OrganizationCoachID != nil {
		coach, err := l.coaches.GetByID(ctx, *e.OrganizationCoachID)
		if err != nil && err != orgcoaches.ErrNotFound {
			return nil, err
		}
		if err == nil {
			load, err := l.engagements.CountActiveForCoach(ctx, coach.ID)
			if err != nil {
				return nil, err
			}
			out.Coach = &models.CoachLoad{OrganizationCoach: coach, ActiveEngagements: int(load)}
		}
	}

	return out, nil
}
