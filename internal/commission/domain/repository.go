package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, rate *Rate) error

	// FindRate returns the rate for (level, productID), or nil. An empty
	// productID matches the level-wide default row.
	FindRate(ctx context.Context, db *gorm.DB, level int, productID string) (*Rate, error)

	List(ctx context.Context, db *gorm.DB) ([]*Rate, error)
}
