package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/flasti/ledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status Status
	Email  string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, affiliate *Affiliate) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Affiliate, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Affiliate, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*Affiliate, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status) error

	// PromoteLevel raises the affiliate's level to level if it is higher
	// than the current one. The guard in the statement keeps promotion
	// monotonic under concurrent credits.
	PromoteLevel(ctx context.Context, db *gorm.DB, id snowflake.ID, level int) (bool, error)
}
