// Package domain contains persistence models for referral visit tracking.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Visit is one referral click. Rows are immutable and are never purged by
// this subsystem; they only need to outlive the attribution window.
type Visit struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	AffiliateID snowflake.ID `gorm:"not null;index" json:"affiliate_id"`
	ProductID   string       `gorm:"type:text;not null" json:"product_id"`
	IPAddress   string       `gorm:"type:text;not null;index:idx_visits_ip_occurred" json:"ip_address"`
	UserAgent   string       `gorm:"type:text" json:"user_agent,omitempty"`
	Referrer    string       `gorm:"type:text" json:"referrer,omitempty"`
	OccurredAt  time.Time    `gorm:"not null;index:idx_visits_ip_occurred" json:"occurred_at"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Visit) TableName() string { return "visits" }
