package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type EventStatus string

const (
	EventPending EventStatus = "pending"
	EventSent    EventStatus = "sent"
)

const (
	TypeSaleRecorded = "sale.recorded"
	TypeSaleRefunded = "sale.refunded"
)

// OutboxEvent is a transactional outbox row. It is written in the same
// transaction as the sale it describes, so an event exists if and only
// if the sale does. The unique index on (type, transaction_id) makes the
// outbox idempotent against duplicate deliveries the same way the sales
// table is.
type OutboxEvent struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	Type          string            `gorm:"type:text;not null;uniqueIndex:ux_outbox_type_tx,priority:1" json:"type"`
	TransactionID string            `gorm:"type:text;not null;uniqueIndex:ux_outbox_type_tx,priority:2" json:"transaction_id"`
	Payload       datatypes.JSONMap `gorm:"type:jsonb" json:"payload"`
	Status        EventStatus       `gorm:"type:text;not null;default:pending;index" json:"status"`
	Attempts      int               `gorm:"not null;default:0" json:"attempts"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	SentAt        *time.Time        `json:"sent_at,omitempty"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }
