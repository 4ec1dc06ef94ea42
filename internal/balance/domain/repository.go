package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository mutates balances with single-statement server-side
// arithmetic only. Read-modify-write in application code is forbidden: it
// silently drops commissions under concurrent webhook delivery.
type Repository interface {
	// EnsureAccount creates the zero-balance row if it does not exist.
	EnsureAccount(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID) error

	// Credit adds amount to both current and lifetime credited in one
	// statement and returns the account as of after the update.
	Credit(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID, amountCents int64) (*Account, error)

	// Debit subtracts amount and adds it to lifetime paid, guarded by
	// current_cents >= amount in the statement itself. Returns false with
	// no mutation when funds are insufficient.
	Debit(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID, amountCents int64) (bool, *Account, error)

	// Reverse backs out a prior credit (current and lifetime credited
	// both decrease) without the funds guard: a reversal is a
	// compensating entry, not a payout.
	Reverse(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID, amountCents int64) (*Account, error)

	InsertEntry(ctx context.Context, db *gorm.DB, entry *Entry) error
	FindByAffiliate(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID) (*Account, error)
	ListEntries(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID, limit int) ([]*Entry, error)
}

var (
	ErrInsufficientFunds = errors.New("insufficient_funds")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidAffiliate  = errors.New("invalid_affiliate")
	ErrNotFound          = errors.New("balance_not_found")
)
