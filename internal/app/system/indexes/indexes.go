// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/luminacoaching/lumina/internal/app/store/accesscodes"
	"github.com/luminacoaching/lumina/internal/app/store/audit"
	"github.com/luminacoaching/lumina/internal/app/store/authevents"
	"github.com/luminacoaching/lumina/internal/app/store/cohorts"
	"github.com/luminacoaching/lumina/internal/app/store/engagements"
	lockstore "github.com/luminacoaching/lumina/internal/app/store/locks"
	"github.com/luminacoaching/lumina/internal/app/store/oauthstate"
	"github.com/luminacoaching/lumina/internal/app/store/orgcoaches"
	"github.com/luminacoaching/lumina/internal/app/store/organizations"
	"github.com/luminacoaching/lumina/internal/app/store/programs"
	userstore "github.com/luminacoaching/lumina/internal/app/store/users"
)

/*
EnsureAll is called at startup. Every store's EnsureIndexes is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database, log *zap.Logger) error {
	locks := lockstore.New(db)

	ensurers := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"users", userstore.New(db).EnsureIndexes},
		{"organizations", organizations.New(db).EnsureIndexes},
		{"programs", programs.New(db).EnsureIndexes},
		{"cohorts", cohorts.New(db).EnsureIndexes},
		{"org_coaches", orgcoaches.New(db).EnsureIndexes},
		{"engagements", engagements.New(db, nil, nil, nil, nil).EnsureIndexes},
		{"locks", locks.EnsureIndexes},
		{"auth_events", authevents.New(db, locks).EnsureIndexes},
		{"access_codes", accesscodes.New(db, 0).EnsureIndexes},
		{"oauth_states", oauthstate.New(db).EnsureIndexes},
		{"audit_events", audit.New(db).EnsureIndexes},
	}

	var problems []string
	for _, e := range ensurers {
		if err := e.fn(ctx); err != nil {
			problems = append(problems, e.name+": "+err.Error())
			continue
		}
		log.Debug("indexes ensured", zap.String("collection", e.name))
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
