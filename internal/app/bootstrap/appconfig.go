// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig handles framework-level settings (ports, TLS, logging,
// request limits); AppConfig is everything specific to Lumina. The struct is
// passed to most lifecycle hooks, so any configuration needed during startup,
// request handling, or shutdown lives here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session and token signing. SessionKey signs both the portal cookie and
	// the participant/magic-link envelopes.
	SessionKey        string
	SessionDomain     string
	PortalCookie      string
	ParticipantCookie string

	// Base URL for links in email (magic links) and OAuth callbacks.
	BaseURL  string
	SiteName string

	// Coach selection
	BatchSize int

	// Participant access codes and staff magic links
	AccessCodeExpiry time.Duration
	MagicLinkTTL     time.Duration
	CodesPerEmail    int
	LinksPerEmail    int
	EmailWindow      time.Duration

	// Per-IP rate limiting on the auth endpoints
	AuthIPLimit  int
	AuthIPWindow time.Duration

	// Email/SMTP configuration
	MailSMTPHost string
	MailSMTPPort int
	MailSMTPUser string
	MailSMTPPass string
	MailFrom     string

	// Audit logging: "all" (db+log), "db", "log", or "off" per category.
	AuditLogAuth      string
	AuditLogSelection string
	AuditLogAdmin     string

	// Google OAuth for staff sign-in
	GoogleClientID     string
	GoogleClientSecret string

	// AdminEmail, when set, is promoted to (or created as) an active admin on
	// startup so a fresh deployment has someone who can sign in.
	AdminEmail string
}
