package models

import "time"

// Audit event types, one per observable state change.
const (
	EventRegistryUpdated    = "registry-updated"
	EventVaultCreated       = "vault-created"
	EventChallengeCreated   = "challenge-created"
	EventChallengeCanceled  = "challenge-canceled"
	EventChallengeFinalized = "challenge-finalized"
	EventFundsReceived      = "funds-received"
	EventRewardClaimed      = "reward-claimed"
)

// Action tags distinguishing the variants of fund-moving events.
const (
	ActionDeposit    = "deposit"
	ActionDonate     = "donate"
	ActionClaim      = "claim"
	ActionWithdraw   = "withdraw"
	ActionAdminSweep = "admin-sweep"
)

// AuditEvent is one fire-and-forget entry in the append-only audit trail.
// Nothing inside the platform consumes these; they exist for off-system
// observers and the archive worker.
type AuditEvent struct {
	ID          string    `gorm:"primaryKey;type:uuid" json:"id"`
	Type        string    `gorm:"index;not null" json:"type"`
	ChallengeID string    `gorm:"index" json:"challenge_id,omitempty"`
	Actor       string    `gorm:"index" json:"actor"`
	AssetID     string    `json:"asset_id,omitempty"`
	Amount      int64     `json:"amount,omitempty"`
	Action      string    `json:"action,omitempty"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime;index"`
}
