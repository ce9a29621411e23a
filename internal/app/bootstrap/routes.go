// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	auditlogfeature "github.com/luminacoaching/lumina/internal/app/features/auditlog"
	authgooglefeature "github.com/luminacoaching/lumina/internal/app/features/authgoogle"
	coachesfeature "github.com/luminacoaching/lumina/internal/app/features/coaches"
	engagementsfeature "github.com/luminacoaching/lumina/internal/app/features/engagements"
	healthfeature "github.com/luminacoaching/lumina/internal/app/features/health"
	logoutfeature "github.com/luminacoaching/lumina/internal/app/features/logout"
	magiclinkfeature "github.com/luminacoaching/lumina/internal/app/features/magiclink"
	participantfeature "github.com/luminacoaching/lumina/internal/app/features/participant"
	selectionfeature "github.com/luminacoaching/lumina/internal/app/features/selection"
	"github.com/luminacoaching/lumina/internal/app/store/accesscodes"
	auditstore "github.com/luminacoaching/lumina/internal/app/store/audit"
	"github.com/luminacoaching/lumina/internal/app/store/authevents"
	"github.com/luminacoaching/lumina/internal/app/store/cohorts"
	engstore "github.com/luminacoaching/lumina/internal/app/store/engagements"
	lockstore "github.com/luminacoaching/lumina/internal/app/store/locks"
	"github.com/luminacoaching/lumina/internal/app/store/oauthstate"
	"github.com/luminacoaching/lumina/internal/app/store/orgcoaches"
	"github.com/luminacoaching/lumina/internal/app/store/programs"
	userstore "github.com/luminacoaching/lumina/internal/app/store/users"
	"github.com/luminacoaching/lumina/internal/app/system/auditlog"
	"github.com/luminacoaching/lumina/internal/app/system/auth"
	"github.com/luminacoaching/lumina/internal/app/system/envelope"
	"github.com/luminacoaching/lumina/internal/app/system/mailer"
	"github.com/luminacoaching/lumina/internal/app/system/ratelimit"
	"github.com/luminacoaching/lumina/internal/app/system/sessionctx"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. All stores and system services are built
// here and threaded into the feature handlers; nothing reaches for globals.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.LuminaMongoDatabase
	secure := coreCfg.Env == "prod"

	signer, err := envelope.New(appCfg.SessionKey)
	if err != nil {
		logger.Error("envelope signer init failed", zap.Error(err))
		return nil, err
	}
	sessions, err := auth.NewSessionManager(
		appCfg.SessionKey, appCfg.PortalCookie, appCfg.ParticipantCookie,
		appCfg.SessionDomain, secure, signer, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Stores. The engagement store owns the capacity-safe selection
	// transaction and needs the coach, cohort, program, and lock stores.
	locks := lockstore.New(db)
	users := userstore.New(db)
	coaches := orgcoaches.New(db)
	cohortStore := cohorts.New(db)
	programStore := programs.New(db)
	engagements := engstore.New(db, coaches, cohortStore, programStore, locks)
	codes := accesscodes.New(db, appCfg.AccessCodeExpiry)
	authEvents := authevents.New(db, locks)
	oauthStates := oauthstate.New(db)

	auditStore := auditstore.New(db)
	audit := auditlog.New(auditStore, logger, auditlog.Config{
		Auth:      appCfg.AuditLogAuth,
		Selection: appCfg.AuditLogSelection,
		Admin:     appCfg.AuditLogAdmin,
	})

	mail := mailer.New(mailer.Config{
		Host:     appCfg.MailSMTPHost,
		Port:     appCfg.MailSMTPPort,
		Username: appCfg.MailSMTPUser,
		Password: appCfg.MailSMTPPass,
		From:     appCfg.MailFrom,
		SiteName: appCfg.SiteName,
	}, logger)

	loader := sessionctx.NewLoader(engagements, users, programStore, cohortStore, coaches)

	// Per-IP limiters are in-memory and per-instance; the durable per-email
	// caps live in the authevents store and hold across instances.
	requestIPs := ratelimit.New(appCfg.AuthIPLimit, appCfg.AuthIPWindow)
	verifyIPs := ratelimit.New(appCfg.AuthIPLimit, appCfg.AuthIPWindow)

	r := chi.NewRouter()

	// Loads the portal SessionUser into context if signed in, making it
	// available to handlers via auth.CurrentUser(r).
	r.Use(sessions.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators.
	healthHandler := healthfeature.NewHandler(deps.LuminaMongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Participant access-code authentication.
	participantHandler := participantfeature.NewHandler(
		users, codes, engagements, authEvents, requestIPs, verifyIPs,
		sessions, mail, audit, logger,
		participantfeature.Config{
			CodesPerEmail: appCfg.CodesPerEmail,
			EmailWindow:   appCfg.EmailWindow,
			SiteName:      appCfg.SiteName,
		})
	r.Mount("/api/participant", participantfeature.Routes(participantHandler))

	// Coach selection: batch, remix, select, context.
	selectionHandler := selectionfeature.NewHandler(
		sessions, loader, coaches, engagements, audit, logger, appCfg.BatchSize)
	r.Mount("/api/selection", selectionfeature.Routes(selectionHandler))

	// Staff sign-in: magic links and Google OAuth.
	magicLinkHandler := magiclinkfeature.NewHandler(
		users, authEvents, requestIPs, sessions, mail, audit, logger,
		magiclinkfeature.Config{
			BaseURL:       appCfg.BaseURL,
			LinkTTL:       appCfg.MagicLinkTTL,
			LinksPerEmail: appCfg.LinksPerEmail,
			EmailWindow:   appCfg.EmailWindow,
			SiteName:      appCfg.SiteName,
		})
	r.Mount("/api/auth/magic-link", magiclinkfeature.Routes(magicLinkHandler))

	googleHandler := authgooglefeature.NewHandler(
		users, oauthStates, sessions, audit,
		appCfg.GoogleClientID, appCfg.GoogleClientSecret, appCfg.BaseURL, logger)
	r.Mount("/api/auth/google", authgooglefeature.Routes(googleHandler))

	logoutHandler := logoutfeature.NewHandler(sessions, audit, logger)
	r.Mount("/api/auth/logout", logoutfeature.Routes(logoutHandler))

	// Admin surfaces.
	coachesHandler := coachesfeature.NewHandler(coaches, users, audit, logger)
	r.Mount("/api/admin/coaches", coachesfeature.Routes(coachesHandler))

	engagementsHandler := engagementsfeature.NewHandler(engagements, audit, logger)
	r.Mount("/api/admin/engagements", engagementsfeature.Routes(engagementsHandler))

	auditHandler := auditlogfeature.NewHandler(auditStore, logger)
	r.Mount("/api/admin/audit", auditlogfeature.Routes(auditHandler))

	return r, nil
}
