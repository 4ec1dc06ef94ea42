package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flasti/ledger/internal/audit/domain"
	"github.com/flasti/ledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AuditLog) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, action string, page pagination.Pagination) ([]*domain.AuditLog, error) {
	var entries []*domain.AuditLog
	stmt := db.WithContext(ctx).Model(&domain.AuditLog{})
	if action != "" {
		stmt = stmt.Where("action = ?", action)
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339, cursor.CreatedAt)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, domain.ErrInvalidPageToken
		}
		stmt = stmt.Where("(created_at, id) < (?, ?)", createdAt, id)
	}
	err := stmt.
		Order("created_at desc, id desc").
		Limit(page.PageSize + 1).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
