// internal/domain/models/participantsession.go
package models

// ParticipantSession is the payload of the signed participant cookie. It is
// never persisted server-side: every request reconstructs it from the cookie,
// so restarts and multi-instance deployments are transparent to it.
//
// ShownCoachIDs accumulates across the session (append-only); RemixUsed is a
// one-way latch; CurrentBatchIDs pins the batch currently displayed so
// re-renders are stable until remix or selection.
type ParticipantSession struct {
	ParticipantID  string `json:"participant_id"`
	EngagementID   string `json:"engagement_id"`
	OrganizationID string `json:"organization_id"`
	CohortID       string `json:"cohort_id"`
	Email          string `json:"email"`

	ShownCoachIDs   []string `json:"shown_coach_ids"`
	RemixUsed       bool     `json:"remix_used"`
	CurrentBatchIDs []string `json:"current_batch_ids"`
}

// MagicLinkClaims is the payload of a staff magic-link token. The token is a
// bearer capability; redemption is additionally guarded by the one-time
// consumption record so a link can never be redeemed twice.
type MagicLinkClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`

	// Nonce makes every issued link unique, so the consumption guard can
	// tell two links minted for the same user apart.
	Nonce string `json:"nonce"`
}
