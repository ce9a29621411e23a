// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/luminacoaching/lumina/internal/app/store/audit"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for authentication events (access codes, magic
	// links, sign-in, logout).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Auth string
	// Selection controls logging for batch and coach selection events.
	Selection string
	// Admin controls logging for roster and engagement admin events.
	Admin string
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}

	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.OrganizationID != nil {
		fields = append(fields, zap.String("organization_id", event.OrganizationID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
// Logging destination is controlled by config: "all", "db", "log", or "off".
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategorySelection:
		setting = l.config.Selection
	case audit.CategoryAdmin:
		setting = l.config.Admin
	default:
		setting = "all"
	}

	if setting == "off" {
		return
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	if setting == "all" || setting == "db" {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Authentication Events ---

// AccessCodeSent logs when a participant access code is emailed.
func (l *Logger) AccessCodeSent(ctx context.Context, r *http.Request, userID primitive.ObjectID, orgID *primitive.ObjectID, email string, isResend bool) {
	eventType := audit.EventAccessCodeSent
	if isResend {
		eventType = audit.EventAccessCodeResent
	}
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAuth,
		EventType:      eventType,
		UserID:         &userID,
		OrganizationID: orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details: map[string]string{
			"email": email,
		},
	})
}

// AccessCodeFailed logs a failed access code attempt.
func (l *Logger) AccessCodeFailed(ctx context.Context, r *http.Request, userID *primitive.ObjectID, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventAccessCodeFailed,
		UserID:        userID,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: reason,
	})
}

// AccessCodeRateLimited logs a code request rejected by rate limiting.
func (l *Logger) AccessCodeRateLimited(ctx context.Context, r *http.Request, limitType string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventAccessCodeRateLimit,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: "rate limit exceeded",
		Details: map[string]string{
			"limit_type": limitType,
		},
	})
}

// ParticipantSignedIn logs a participant opening a selection session.
func (l *Logger) ParticipantSignedIn(ctx context.Context, r *http.Request, userID primitive.ObjectID, orgID *primitive.ObjectID, engagementID string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAuth,
		EventType:      audit.EventParticipantSignedIn,
		UserID:         &userID,
		OrganizationID: orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details: map[string]string{
			"engagement_id": engagementID,
		},
	})
}

// MagicLinkSent logs when a staff magic link is emailed.
func (l *Logger) MagicLinkSent(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventMagicLinkSent,
		UserID:    &userID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details: map[string]string{
			"email": email,
		},
	})
}

// MagicLinkUsed logs a successful magic-link sign-in.
func (l *Logger) MagicLinkUsed(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventMagicLinkUsed,
		UserID:    &userID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details: map[string]string{
			"email": email,
		},
	})
}

// MagicLinkReplayed logs an attempt to redeem an already-consumed link.
func (l *Logger) MagicLinkReplayed(ctx context.Context, r *http.Request, email string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventMagicLinkReplayed,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: "token already consumed",
		Details: map[string]string{
			"email": email,
		},
	})
}

// StaffSignedIn logs a staff portal sign-in.
func (l *Logger) StaffSignedIn(ctx context.Context, r *http.Request, userID primitive.ObjectID, orgID *primitive.ObjectID, method string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAuth,
		EventType:      audit.EventStaffSignedIn,
		UserID:         &userID,
		OrganizationID: orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details: map[string]string{
			"auth_method": method,
		},
	})
}

// Logout logs a user logout.
// Accepts string IDs from SessionUser and converts them to ObjectIDs.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userIDStr, orgIDStr string) {
	var userID *primitive.ObjectID
	var orgID *primitive.ObjectID

	if oid, err := primitive.ObjectIDFromHex(userIDStr); err == nil {
		userID = &oid
	}
	if oid, err := primitive.ObjectIDFromHex(orgIDStr); err == nil {
		orgID = &oid
	}

	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAuth,
		EventType:      audit.EventLogout,
		UserID:         userID,
		OrganizationID: orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
	})
}

// --- Selection Events ---

// BatchShown logs a batch of coaches presented to a participant.
func (l *Logger) BatchShown(ctx context.Context, r *http.Request, userID primitive.ObjectID, orgID *primitive.ObjectID, engagementID string, batchSize, shownTotal int, remix bool) {
	eventType := audit.EventBatchShown
	if remix {
		eventType = audit.EventBatchRemixed
	}
	l.Log(ctx, audit.Event{
		Category:       audit.CategorySelection,
		EventType:      eventType,
		UserID:         &userID,
		OrganizationID: orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details: map[string]string{
			"engagement_id": engagementID,
			"batch_size":    strconv.Itoa(batchSize),
			"shown_total":   strconv.Itoa(shownTotal),
		},
	})
}

// CoachSelected logs a committed coach selection.
func (l *Logger) CoachSelected(ctx context.Context, r *http.Request, userID primitive.ObjectID, orgID *primitive.ObjectID, engagementID, coachID string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategorySelection,
		EventType:      audit.EventCoachSelected,
		UserID:         &userID,
		OrganizationID: orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details: map[string]string{
			"engagement_id": engagementID,
			"coach_id":      coachID,
		},
	})
}

// SelectionRejected logs a selection attempt that was turned away.
func (l *Logger) SelectionRejected(ctx context.Context, r *http.Request, userID primitive.ObjectID, orgID *primitive.ObjectID, engagementID, coachID, reason string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategorySelection,
		EventType:      audit.EventSelectionRejected,
		UserID:         &userID,
		OrganizationID: orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        false,
		FailureReason:  reason,
		Details: map[string]string{
			"engagement_id": engagementID,
			"coach_id":      coachID,
		},
	})
}

// --- Admin Events ---

// CoachCreated logs when an admin creates a coach membership.
func (l *Logger) CoachCreated(ctx context.Context, r *http.Request, actorID, coachID primitive.ObjectID, orgID *primitive.ObjectID, displayName string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      audit.EventCoachCreated,
		ActorID:        &actorID,
		OrganizationID: orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details: map[string]string{
			"coach_id":     coachID.Hex(),
			"display_name": displayName,
		},
	})
}

// CoachUpdated logs when an admin updates a coach membership.
func (l *Logger) CoachUpdated(ctx context.Context, r *http.Request, actorID, coachID primitive.ObjectID, orgID *primitive.ObjectID, fieldsChanged string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      audit.EventCoachUpdated,
		ActorID:        &actorID,
		OrganizationID: orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details: map[string]string{
			"coach_id":       coachID.Hex(),
			"fields_changed": fieldsChanged,
		},
	})
}

// CoachArchived logs when an admin archives a coach membership.
func (l *Logger) CoachArchived(ctx context.Context, r *http.Request, actorID, coachID primitive.ObjectID, orgID *primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      audit.EventCoachArchived,
		ActorID:        &actorID,
		OrganizationID: orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details: map[string]string{
			"coach_id": coachID.Hex(),
		},
	})
}

// EngagementCanceled logs when an admin cancels an engagement.
func (l *Logger) EngagementCanceled(ctx context.Context, r *http.Request, actorID, engagementID primitive.ObjectID, orgID *primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      audit.EventEngagementCanceled,
		ActorID:        &actorID,
		OrganizationID: orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details: map[string]string{
			"engagement_id": engagementID.Hex(),
		},
	})
}

// EngagementUpdated logs when an admin moves an engagement between statuses.
func (l *Logger) EngagementUpdated(ctx context.Context, r *http.Request, actorID, engagementID primitive.ObjectID, orgID *primitive.ObjectID, toStatus string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      audit.EventEngagementUpdated,
		ActorID:        &actorID,
		OrganizationID: orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details: map[string]string{
			"engagement_id": engagementID.Hex(),
			"to_status":     toStatus,
		},
	})
}
