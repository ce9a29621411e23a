// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// devSessionKey is the default signing key. Fine for local development,
// fatal in production (see ValidateConfig).
const devSessionKey = "dev-only-change-me-please-0123456789ABCDEF"

// appConfigKeys defines the configuration keys for Lumina.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_key, etc.
//   - Environment variables: LUMINA_MONGO_URI, LUMINA_SESSION_KEY, etc.
//   - Command-line flags: --mongo_uri, --session_key, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "lumina", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size"},

	{Name: "session_key", Default: devSessionKey, Desc: "Cookie/token signing key (must be strong in production)"},
	{Name: "session_domain", Default: "", Desc: "Cookie domain (blank means current host)"},
	{Name: "portal_cookie", Default: "lumina_portal", Desc: "Staff portal session cookie name"},
	{Name: "participant_cookie", Default: "lumina_participant", Desc: "Participant session cookie name"},

	{Name: "base_url", Default: "http://localhost:3000", Desc: "Base URL for email links and OAuth callbacks"},
	{Name: "site_name", Default: "Lumina Coaching", Desc: "Display name used in outgoing email"},

	{Name: "batch_size", Default: 3, Desc: "Coaches shown per selection batch"},

	{Name: "access_code_expiry", Default: "10m", Desc: "Participant access code expiry (e.g., 10m, 1h)"},
	{Name: "magic_link_ttl", Default: "15m", Desc: "Staff magic link expiry"},
	{Name: "codes_per_email", Default: 5, Desc: "Access code requests allowed per email per window"},
	{Name: "links_per_email", Default: 5, Desc: "Magic link requests allowed per email per window"},
	{Name: "email_window", Default: "15m", Desc: "Window for the per-email request caps"},

	{Name: "auth_ip_limit", Default: 30, Desc: "Auth endpoint requests allowed per IP per window"},
	{Name: "auth_ip_window", Default: "5m", Desc: "Window for the per-IP auth rate limit"},

	// Email/SMTP configuration. An empty host logs email instead of sending,
	// which is what local development wants.
	{Name: "mail_smtp_host", Default: "", Desc: "SMTP server host (empty logs email instead of sending)"},
	{Name: "mail_smtp_port", Default: 1025, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@luminacoaching.com", Desc: "From email address"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_selection", Default: "all", Desc: "Selection event logging: 'all', 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all', 'db', 'log', or 'off'"},

	// Google OAuth configuration
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},

	// Admin bootstrap
	{Name: "admin_email", Default: "", Desc: "Email promoted to/created as an active admin on startup"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, LUMINA_* for app), and
// command-line flags, merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "LUMINA", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:        appValues.String("session_key"),
		SessionDomain:     appValues.String("session_domain"),
		PortalCookie:      appValues.String("portal_cookie"),
		ParticipantCookie: appValues.String("participant_cookie"),

		BaseURL:  appValues.String("base_url"),
		SiteName: appValues.String("site_name"),

		BatchSize: appValues.Int("batch_size"),

		AccessCodeExpiry: appValues.Duration("access_code_expiry", 10*time.Minute),
		MagicLinkTTL:     appValues.Duration("magic_link_ttl", 15*time.Minute),
		CodesPerEmail:    appValues.Int("codes_per_email"),
		LinksPerEmail:    appValues.Int("links_per_email"),
		EmailWindow:      appValues.Duration("email_window", 15*time.Minute),

		AuthIPLimit:  appValues.Int("auth_ip_limit"),
		AuthIPWindow: appValues.Duration("auth_ip_window", 5*time.Minute),

		MailSMTPHost: appValues.String("mail_smtp_host"),
		MailSMTPPort: appValues.Int("mail_smtp_port"),
		MailSMTPUser: appValues.String("mail_smtp_user"),
		MailSMTPPass: appValues.String("mail_smtp_pass"),
		MailFrom:     appValues.String("mail_from"),

		AuditLogAuth:      appValues.String("audit_log_auth"),
		AuditLogSelection: appValues.String("audit_log_selection"),
		AuditLogAdmin:     appValues.String("audit_log_admin"),

		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),

		AdminEmail: appValues.String("admin_email"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// The MongoDB URI is checked up front so a typo fails before the first
// connection attempt, and production refuses to run on the dev signing key.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if coreCfg.Env == "prod" {
		if appCfg.SessionKey == devSessionKey {
			return fmt.Errorf("session_key is the development default; set LUMINA_SESSION_KEY")
		}
		if len(appCfg.SessionKey) < 32 {
			return fmt.Errorf("session_key must be at least 32 characters in production")
		}
	}

	if appCfg.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1")
	}

	return nil
}
