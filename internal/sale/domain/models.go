package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusApproved Status = "approved"
	StatusRefunded Status = "refunded"
)

// Sale is the immutable record of one webhook-delivered transaction.
// TransactionID is the idempotency key: the unique index on it is the
// mechanism that makes duplicate deliveries no-ops, not any
// application-level check.
type Sale struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	TransactionID string        `gorm:"type:text;not null;uniqueIndex:ux_sales_transaction_id" json:"transaction_id"`
	AffiliateID   *snowflake.ID `gorm:"index" json:"affiliate_id,omitempty"`
	ProductID     string        `gorm:"type:text;not null" json:"product_id"`
	ProductName   string        `gorm:"type:text" json:"product_name,omitempty"`

	GrossCents      int64 `gorm:"not null" json:"gross_cents"`
	CommissionCents int64 `gorm:"not null;default:0" json:"commission_cents"`
	RateBps         int64 `gorm:"not null;default:0" json:"rate_bps"`

	BuyerID    string `gorm:"type:text" json:"buyer_id,omitempty"`
	BuyerEmail string `gorm:"type:text" json:"buyer_email,omitempty"`
	IPAddress  string `gorm:"type:text;index:idx_sales_ip_occurred,priority:1" json:"ip_address,omitempty"`

	Status            Status `gorm:"type:text;not null;default:approved" json:"status"`
	AttributionSource string `gorm:"type:text" json:"attribution_source,omitempty"`
	Provider          string `gorm:"type:text" json:"provider,omitempty"`

	OccurredAt time.Time `gorm:"not null;index:idx_sales_ip_occurred,priority:2" json:"occurred_at"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Sale) TableName() string { return "sales" }

// Attributed reports whether the sale carried commission to an affiliate.
func (s *Sale) Attributed() bool {
	return s.AffiliateID != nil
}
