package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flasti/ledger/pkg/db/pagination"
)

// RecordRequest carries everything the ledger needs to write one sale.
// Attribution has already been decided: AffiliateID and Level describe
// the winner, or AffiliateID is nil for an unattributed sale.
type RecordRequest struct {
	TransactionID string
	ProductID     string
	ProductName   string
	GrossCents    int64
	BuyerID       string
	BuyerEmail    string
	IPAddress     string
	Provider      string
	OccurredAt    time.Time

	AffiliateID       *snowflake.ID
	AffiliateLevel    int
	AttributionSource string
}

// RecordResult reports what the call did. Created is false when the
// transaction had already been recorded; Sale is then the original row.
type RecordResult struct {
	Sale    *Sale
	Created bool
}

type Service interface {
	// Record writes the sale and, when it is attributed, credits the
	// commission, in one transaction. Calling it again with the same
	// transaction ID returns the original sale and credits nothing.
	Record(ctx context.Context, req RecordRequest) (*RecordResult, error)

	// Refund marks an approved sale refunded and reverses its commission
	// credit. Refunding twice, or refunding an unattributed sale's
	// commission, is a no-op on the balance.
	Refund(ctx context.Context, transactionID, ipAddress string) (*Sale, error)

	GetByTransactionID(ctx context.Context, transactionID string) (*Sale, error)
	List(ctx context.Context, filter ListFilter, page pagination.Pagination) ([]*Sale, *pagination.PageInfo, error)
}

var (
	ErrNotFound           = errors.New("sale_not_found")
	ErrAlreadyRefunded    = errors.New("sale_already_refunded")
	ErrInvalidTransaction = errors.New("invalid_transaction_id")
	ErrInvalidAmount      = errors.New("invalid_amount")
	ErrInvalidProduct     = errors.New("invalid_product_id")
)
