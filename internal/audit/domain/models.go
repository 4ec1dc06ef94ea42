package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AuditLog is an insert-only operational record: self-referral blocks,
// velocity flags, rate fallbacks, refunds. It feeds the (external)
// review workflow; nothing in the ledger reads it back.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	Action     string            `gorm:"type:text;not null;index" json:"action"`
	TargetType string            `gorm:"type:text;not null" json:"target_type"`
	TargetID   string            `gorm:"type:text" json:"target_id,omitempty"`
	IPAddress  string            `gorm:"type:text" json:"ip_address,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

const (
	ActionSelfReferralBlocked = "attribution.self_referral_blocked"
	ActionVelocityFlagged     = "fraud.velocity_flagged"
	ActionRateFallback        = "commission.rate_fallback"
	ActionSaleRefunded        = "sale.refunded"
)
