package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flasti/ledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	AffiliateID snowflake.ID
	Status      Status
}

type Repository interface {
	// InsertIfAbsent writes the sale unless a row with the same
	// transaction_id already exists. It returns true when this call
	// created the row, false when a concurrent or earlier delivery won.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, sale *Sale) (bool, error)

	FindByTransactionID(ctx context.Context, db *gorm.DB, transactionID string) (*Sale, error)

	// MarkRefunded flips status approved -> refunded. The status guard in
	// the statement makes a second refund a no-op.
	MarkRefunded(ctx context.Context, db *gorm.DB, transactionID string) (bool, error)

	CountByIPSince(ctx context.Context, db *gorm.DB, ip string, since time.Time) (int64, error)
	CountByAffiliateSince(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID, since time.Time) (int64, error)

	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*Sale, error)
}
