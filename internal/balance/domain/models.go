package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Account is an affiliate's spendable balance. All amounts are integer
// cents. Invariant: CurrentCents == LifetimeCreditedCents - LifetimePaidCents.
// The invariant holds by construction because every mutation is a single
// server-side arithmetic statement touching both sides.
type Account struct {
	AffiliateID           snowflake.ID `gorm:"primaryKey" json:"affiliate_id"`
	CurrentCents          int64        `gorm:"not null;default:0" json:"current_cents"`
	LifetimeCreditedCents int64        `gorm:"not null;default:0" json:"lifetime_credited_cents"`
	LifetimePaidCents     int64        `gorm:"not null;default:0" json:"lifetime_paid_cents"`
	CreatedAt             time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt             time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Account) TableName() string { return "balance_accounts" }

type EntryType string

const (
	EntryCredit   EntryType = "credit"
	EntryDebit    EntryType = "debit"
	EntryReversal EntryType = "reversal"
)

// Entry is the append-only audit trail of balance mutations.
type Entry struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	AffiliateID snowflake.ID `gorm:"not null;index" json:"affiliate_id"`
	Type        EntryType    `gorm:"type:text;not null" json:"type"`
	AmountCents int64        `gorm:"not null" json:"amount_cents"`
	Reference   string       `gorm:"type:text" json:"reference,omitempty"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Entry) TableName() string { return "balance_entries" }

// LevelFor derives the level an affiliate has earned from lifetime
// credited cents. thresholds maps level -> minimum lifetime; level 1 is
// implicit. Promotion is monotonic; demotion never happens here.
func LevelFor(lifetimeCents int64, thresholds map[int]int64) int {
	level := 1
	for candidate, min := range thresholds {
		if candidate > level && lifetimeCents >= min {
			level = candidate
		}
	}
	return level
}
