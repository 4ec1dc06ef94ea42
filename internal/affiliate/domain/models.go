package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Affiliate is a registered referrer. Level only ever increases, and only
// through the balance service crossing a lifetime-credited threshold.
// Affiliates are deactivated, never deleted.
type Affiliate struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	Code      string            `gorm:"not null;uniqueIndex" json:"code"`
	Name      string            `gorm:"not null" json:"name"`
	Email     string            `gorm:"not null;index" json:"email"`
	Level     int               `gorm:"not null;default:1" json:"level"`
	Status    Status            `gorm:"type:text;not null;default:'active'" json:"status"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Affiliate) TableName() string { return "affiliates" }

func (a *Affiliate) Active() bool {
	return a != nil && a.Status == StatusActive
}
