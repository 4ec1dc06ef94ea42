package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flasti/ledger/internal/affiliate/domain"
	"github.com/flasti/ledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, affiliate *domain.Affiliate) error {
	return db.WithContext(ctx).Create(affiliate).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Affiliate, error) {
	var affiliate domain.Affiliate
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&affiliate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &affiliate, nil
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Affiliate, error) {
	var affiliate domain.Affiliate
	err := db.WithContext(ctx).
		Where("code = ?", code).
		First(&affiliate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &affiliate, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Affiliate, error) {
	var affiliates []*domain.Affiliate
	stmt := db.WithContext(ctx).Model(&domain.Affiliate{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Email != "" {
		stmt = stmt.Where("email = ?", filter.Email)
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		createdAt, err := time.Parse(time.RFC3339, cursor.CreatedAt)
		if err != nil {
			return nil, err
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, err
		}
		stmt = stmt.Where("(created_at, id) < (?, ?)", createdAt, id)
	}
	err := stmt.
		Order("created_at desc, id desc").
		Limit(page.PageSize + 1).
		Find(&affiliates).Error
	if err != nil {
		return nil, err
	}
	return affiliates, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status) error {
	return db.WithContext(ctx).
		Model(&domain.Affiliate{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *repo) PromoteLevel(ctx context.Context, db *gorm.DB, id snowflake.ID, level int) (bool, error) {
	result := db.WithContext(ctx).
		Model(&domain.Affiliate{}).
		Where("id = ? AND level < ?", id, level).
		Updates(map[string]any{
			"level":      level,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
