package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, visit *Visit) error

	// LatestByIP returns the single most recent visit from ip at or after
	// since, or nil. Last touch wins: older visits from the same IP are
	// never considered.
	LatestByIP(ctx context.Context, db *gorm.DB, ip string, since time.Time) (*Visit, error)
}
