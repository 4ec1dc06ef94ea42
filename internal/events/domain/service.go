package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	// InsertIfAbsent writes the event unless one with the same
	// (type, transaction_id) already exists. Callers pass their open
	// transaction so the event commits or rolls back with the sale.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, event *OutboxEvent) (bool, error)

	FindPending(ctx context.Context, db *gorm.DB, limit int) ([]*OutboxEvent, error)
	MarkSent(ctx context.Context, db *gorm.DB, id int64) error
	MarkFailed(ctx context.Context, db *gorm.DB, id int64) error
}

// Publisher delivers events to the outside world. Enqueue must be
// called inside the business transaction; delivery happens later from
// the dispatcher loop.
type Publisher interface {
	Enqueue(ctx context.Context, tx *gorm.DB, eventType, transactionID string, payload map[string]any) error
}
