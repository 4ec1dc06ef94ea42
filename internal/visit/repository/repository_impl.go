package repository

import (
	"context"
	"errors"
	"time"

	"github.com/flasti/ledger/internal/visit/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, visit *domain.Visit) error {
	return db.WithContext(ctx).Create(visit).Error
}

func (r *repo) LatestByIP(ctx context.Context, db *gorm.DB, ip string, since time.Time) (*domain.Visit, error) {
	var visit domain.Visit
	err := db.WithContext(ctx).
		Where("ip_address = ? AND occurred_at >= ?", ip, since).
		Order("occurred_at desc, id desc").
		First(&visit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &visit, nil
}
