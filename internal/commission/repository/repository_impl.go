package repository

import (
	"context"
	"errors"
	"time"

	"github.com/flasti/ledger/internal/commission/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, rate *domain.Rate) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "level"}, {Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"rate_bps":   rate.RateBps,
				"updated_at": time.Now().UTC(),
			}),
		}).
		Create(rate).Error
}

func (r *repo) FindRate(ctx context.Context, db *gorm.DB, level int, productID string) (*domain.Rate, error) {
	var rate domain.Rate
	err := db.WithContext(ctx).
		Where("level = ? AND product_id = ?", level, productID).
		First(&rate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &rate, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]*domain.Rate, error) {
	var rates []*domain.Rate
	err := db.WithContext(ctx).
		Order("level asc, product_id asc").
		Find(&rates).Error
	if err != nil {
		return nil, err
	}
	return rates, nil
}
