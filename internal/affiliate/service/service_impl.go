package service

import (
	"context"
	"crypto/rand"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flasti/ledger/internal/affiliate/domain"
	"github.com/flasti/ledger/pkg/db"
	"github.com/flasti/ledger/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	codeLength   = 8
	codeCharset  = "abcdefghjkmnpqrstuvwxyz23456789"
	codeAttempts = 5
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("affiliate.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateAffiliateRequest) (domain.Affiliate, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Affiliate{}, domain.ErrInvalidName
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.Affiliate{}, domain.ErrInvalidEmail
	}

	now := time.Now().UTC()
	affiliate := domain.Affiliate{
		ID:        s.genID.Generate(),
		Name:      name,
		Email:     email,
		Level:     1,
		Status:    domain.StatusActive,
		Metadata:  datatypes.JSONMap{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Referral codes are random; retry on the unique index rather than
	// pre-checking.
	var err error
	for attempt := 0; attempt < codeAttempts; attempt++ {
		affiliate.Code = randomCode()
		err = s.repo.Insert(ctx, s.db, &affiliate)
		if err == nil {
			return affiliate, nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return domain.Affiliate{}, err
		}
	}
	s.log.Error("exhausted referral code attempts", zap.Error(err))
	return domain.Affiliate{}, err
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Affiliate, error) {
	parsed, err := parseID(id)
	if err != nil {
		return domain.Affiliate{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, parsed)
	if err != nil {
		return domain.Affiliate{}, err
	}
	if item == nil {
		return domain.Affiliate{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) GetByCode(ctx context.Context, code string) (domain.Affiliate, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.Affiliate{}, domain.ErrInvalidCode
	}

	item, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return domain.Affiliate{}, err
	}
	if item == nil {
		return domain.Affiliate{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListAffiliateRequest) (domain.ListAffiliateResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		Status: domain.Status(strings.TrimSpace(req.Status)),
		Email:  strings.ToLower(strings.TrimSpace(req.Email)),
	}, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListAffiliateResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *domain.Affiliate) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	affiliates := make([]domain.Affiliate, 0, len(items))
	for _, item := range items {
		affiliates = append(affiliates, *item)
	}

	return domain.ListAffiliateResponse{
		PageInfo:   *pageInfo,
		Affiliates: affiliates,
	}, nil
}

func (s *Service) Deactivate(ctx context.Context, id string) error {
	parsed, err := parseID(id)
	if err != nil {
		return err
	}

	item, err := s.repo.FindByID(ctx, s.db, parsed)
	if err != nil {
		return err
	}
	if item == nil {
		return domain.ErrNotFound
	}

	return s.repo.UpdateStatus(ctx, s.db, parsed, domain.StatusInactive)
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func randomCode() string {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i, b := range buf {
		buf[i] = codeCharset[int(b)%len(codeCharset)]
	}
	return string(buf)
}
