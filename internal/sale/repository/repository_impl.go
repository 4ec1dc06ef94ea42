package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flasti/ledger/internal/sale/domain"
	"github.com/flasti/ledger/pkg/db"
	"github.com/flasti/ledger/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertIfAbsent(ctx context.Context, tx *gorm.DB, sale *domain.Sale) (bool, error) {
	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "transaction_id"}},
			DoNothing: true,
		}).
		Create(sale)
	if result.Error != nil {
		// Some dialects surface the conflict as an error instead of
		// honoring DO NOTHING. Treat it the same: the row exists.
		if db.IsDuplicateKeyErr(result.Error) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByTransactionID(ctx context.Context, tx *gorm.DB, transactionID string) (*domain.Sale, error) {
	var sale domain.Sale
	err := tx.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		First(&sale).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &sale, nil
}

func (r *repo) MarkRefunded(ctx context.Context, tx *gorm.DB, transactionID string) (bool, error) {
	result := tx.WithContext(ctx).
		Model(&domain.Sale{}).
		Where("transaction_id = ? AND status = ?", transactionID, domain.StatusApproved).
		Updates(map[string]any{
			"status":     domain.StatusRefunded,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) CountByIPSince(ctx context.Context, tx *gorm.DB, ip string, since time.Time) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&domain.Sale{}).
		Where("ip_address = ? AND occurred_at >= ?", ip, since).
		Count(&count).Error
	return count, err
}

func (r *repo) CountByAffiliateSince(ctx context.Context, tx *gorm.DB, affiliateID snowflake.ID, since time.Time) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).
		Model(&domain.Sale{}).
		Where("affiliate_id = ? AND occurred_at >= ?", affiliateID, since).
		Count(&count).Error
	return count, err
}

func (r *repo) List(ctx context.Context, tx *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Sale, error) {
	var sales []*domain.Sale
	stmt := tx.WithContext(ctx).Model(&domain.Sale{})
	if filter.AffiliateID != 0 {
		stmt = stmt.Where("affiliate_id = ?", filter.AffiliateID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
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
		Find(&sales).Error
	if err != nil {
		return nil, err
	}
	return sales, nil
}
