package repository

import (
	"context"
	"time"

	"github.com/flasti/ledger/internal/events/domain"
	"github.com/flasti/ledger/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertIfAbsent(ctx context.Context, tx *gorm.DB, event *domain.OutboxEvent) (bool, error) {
	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "type"}, {Name: "transaction_id"}},
			DoNothing: true,
		}).
		Create(event)
	if result.Error != nil {
		if db.IsDuplicateKeyErr(result.Error) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindPending(ctx context.Context, tx *gorm.DB, limit int) ([]*domain.OutboxEvent, error) {
	var events []*domain.OutboxEvent
	err := tx.WithContext(ctx).
		Where("status = ?", domain.EventPending).
		Order("id asc").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repo) MarkSent(ctx context.Context, tx *gorm.DB, id int64) error {
	now := time.Now()
	return tx.WithContext(ctx).
		Model(&domain.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":   domain.EventSent,
			"sent_at":  &now,
			"attempts": gorm.Expr("attempts + 1"),
		}).Error
}

func (r *repo) MarkFailed(ctx context.Context, tx *gorm.DB, id int64) error {
	return tx.WithContext(ctx).
		Model(&domain.OutboxEvent{}).
		Where("id = ?", id).
		Update("attempts", gorm.Expr("attempts + 1")).Error
}
