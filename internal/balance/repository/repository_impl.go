package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flasti/ledger/internal/balance/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) EnsureAccount(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "affiliate_id"}},
			DoNothing: true,
		}).
		Create(&domain.Account{
			AffiliateID: affiliateID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}).Error
}

func (r *repo) Credit(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID, amountCents int64) (*domain.Account, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE balance_accounts
		 SET current_cents = current_cents + ?,
		     lifetime_credited_cents = lifetime_credited_cents + ?,
		     updated_at = ?
		 WHERE affiliate_id = ?`,
		amountCents, amountCents, time.Now().UTC(), affiliateID,
	)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, domain.ErrNotFound
	}
	// Re-read inside the caller's transaction: the row lock taken by the
	// UPDATE makes this snapshot consistent with the increment.
	return r.FindByAffiliate(ctx, db, affiliateID)
}

func (r *repo) Debit(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID, amountCents int64) (bool, *domain.Account, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE balance_accounts
		 SET current_cents = current_cents - ?,
		     lifetime_paid_cents = lifetime_paid_cents + ?,
		     updated_at = ?
		 WHERE affiliate_id = ? AND current_cents >= ?`,
		amountCents, amountCents, time.Now().UTC(), affiliateID, amountCents,
	)
	if result.Error != nil {
		return false, nil, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil, nil
	}
	account, err := r.FindByAffiliate(ctx, db, affiliateID)
	if err != nil {
		return false, nil, err
	}
	return true, account, nil
}

func (r *repo) Reverse(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID, amountCents int64) (*domain.Account, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE balance_accounts
		 SET current_cents = current_cents - ?,
		     lifetime_credited_cents = lifetime_credited_cents - ?,
		     updated_at = ?
		 WHERE affiliate_id = ?`,
		amountCents, amountCents, time.Now().UTC(), affiliateID,
	)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, domain.ErrNotFound
	}
	return r.FindByAffiliate(ctx, db, affiliateID)
}

func (r *repo) InsertEntry(ctx context.Context, db *gorm.DB, entry *domain.Entry) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) FindByAffiliate(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).
		Where("affiliate_id = ?", affiliateID).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *repo) ListEntries(ctx context.Context, db *gorm.DB, affiliateID snowflake.ID, limit int) ([]*domain.Entry, error) {
	var entries []*domain.Entry
	err := db.WithContext(ctx).
		Where("affiliate_id = ?", affiliateID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
