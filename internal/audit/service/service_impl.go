package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flasti/ledger/internal/audit/domain"
	"github.com/flasti/ledger/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type auditService struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &auditService{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

// Log records an audit entry on a best effort basis. Failures are logged and
// swallowed so that auditing never breaks the operation being audited.
func (s *auditService) Log(ctx context.Context, action, targetType, targetID, ipAddress string, metadata map[string]any) {
	entry := &domain.AuditLog{
		ID:         s.genID.Generate(),
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		IPAddress:  ipAddress,
		Metadata:   datatypes.JSONMap(metadata),
		CreatedAt:  time.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, entry); err != nil {
		s.log.Warn("failed to record audit entry",
			zap.String("action", action),
			zap.String("target_id", targetID),
			zap.Error(err),
		)
	}
}

func (s *auditService) List(ctx context.Context, req domain.ListAuditLogRequest) (domain.ListAuditLogResponse, error) {
	action := strings.TrimSpace(req.Action)
	page := req.Pagination
	if page.PageSize <= 0 || page.PageSize > 100 {
		page.PageSize = 50
	}

	entries, err := s.repo.List(ctx, s.db, action, page)
	if err != nil {
		return domain.ListAuditLogResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(entries, page.PageSize, func(e *domain.AuditLog) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{
			ID:        e.ID.String(),
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		})
		return token
	})
	if pageInfo.HasMore {
		entries = entries[:page.PageSize]
	}

	logs := make([]domain.AuditLog, 0, len(entries))
	for _, e := range entries {
		logs = append(logs, *e)
	}
	return domain.ListAuditLogResponse{
		PageInfo:  *pageInfo,
		AuditLogs: logs,
	}, nil
}
