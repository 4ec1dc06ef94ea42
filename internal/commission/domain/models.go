package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Rate is one row of the tiered commission table. ProductID empty means
// the row is the level-wide default. Rates are basis points of the gross
// amount.
type Rate struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Level     int          `gorm:"not null;uniqueIndex:ux_commission_rates_level_product,priority:1" json:"level"`
	ProductID string       `gorm:"type:text;not null;default:'';uniqueIndex:ux_commission_rates_level_product,priority:2" json:"product_id,omitempty"`
	RateBps   int64        `gorm:"not null" json:"rate_bps"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Rate) TableName() string { return "commission_rates" }

// RateSource records which rung of the fallback ladder produced a quote,
// so rate-table gaps are observable instead of silent.
type RateSource string

const (
	SourceProductLevel RateSource = "product_level"
	SourceLevel        RateSource = "level"
	SourceGlobal       RateSource = "global_default"
)

// Commission computes the commission for grossCents at rateBps, rounding
// half-up to the cent. Pure and deterministic.
func Commission(grossCents, rateBps int64) int64 {
	if grossCents <= 0 || rateBps <= 0 {
		return 0
	}
	return (grossCents*rateBps + 5000) / 10000
}
