package domain

import (
	"context"
	"errors"

	"github.com/flasti/ledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListAuditLogRequest struct {
	pagination.Pagination
	Action string `form:"action"`
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, action string, page pagination.Pagination) ([]*AuditLog, error)
}

type Service interface {
	// Log never fails the caller's flow: write errors are logged and
	// swallowed.
	Log(ctx context.Context, action, targetType, targetID, ipAddress string, metadata map[string]any)
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidAction    = errors.New("invalid_action")
	ErrInvalidPageToken = errors.New("invalid_page_token")
)
