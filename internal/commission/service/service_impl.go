package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/flasti/ledger/internal/audit/domain"
	"github.com/flasti/ledger/internal/commission/domain"
	"github.com/flasti/ledger/internal/config"
	"github.com/flasti/ledger/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Guard   *config.GuardConfigHolder
	Repo    domain.Repository
	Audit   auditdomain.Service
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	guard   *config.GuardConfigHolder
	repo    domain.Repository
	audit   auditdomain.Service
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("commission.service"),
		genID:   p.GenID,
		guard:   p.Guard,
		repo:    p.Repo,
		audit:   p.Audit,
		metrics: p.Metrics,
	}
}

func (s *Service) recordFallback(ctx context.Context, level int, productID string, source domain.RateSource) {
	s.metrics.RecordRateFallback(ctx, string(source))
	s.audit.Log(ctx, auditdomain.ActionRateFallback, "commission_rate", strconv.Itoa(level), "", map[string]any{
		"product_id": productID,
		"source":     string(source),
	})
}

func (s *Service) QuoteRate(ctx context.Context, level int, productID string) (domain.Quote, error) {
	if level < 1 {
		return domain.Quote{}, domain.ErrInvalidLevel
	}
	productID = strings.TrimSpace(productID)

	if productID != "" {
		rate, err := s.repo.FindRate(ctx, s.db, level, productID)
		if err != nil {
			return domain.Quote{}, err
		}
		if rate != nil {
			return domain.Quote{RateBps: rate.RateBps, Source: domain.SourceProductLevel}, nil
		}
	}

	rate, err := s.repo.FindRate(ctx, s.db, level, "")
	if err != nil {
		return domain.Quote{}, err
	}
	if rate != nil {
		if productID != "" {
			s.log.Info("no product rate configured, using level default",
				zap.Int("level", level),
				zap.String("product_id", productID),
			)
			s.recordFallback(ctx, level, productID, domain.SourceLevel)
		}
		return domain.Quote{RateBps: rate.RateBps, Source: domain.SourceLevel}, nil
	}

	defaultBps := s.guard.Get().DefaultRateBps
	s.log.Warn("no rate configured for level, using global default",
		zap.Int("level", level),
		zap.String("product_id", productID),
		zap.Int64("rate_bps", defaultBps),
	)
	s.recordFallback(ctx, level, productID, domain.SourceGlobal)
	return domain.Quote{RateBps: defaultBps, Source: domain.SourceGlobal}, nil
}

func (s *Service) UpsertRate(ctx context.Context, req domain.UpsertRateRequest) (domain.Rate, error) {
	if req.Level < 1 {
		return domain.Rate{}, domain.ErrInvalidLevel
	}
	if req.RateBps <= 0 || req.RateBps > 10000 {
		return domain.Rate{}, domain.ErrInvalidRate
	}

	now := time.Now().UTC()
	rate := domain.Rate{
		ID:        s.genID.Generate(),
		Level:     req.Level,
		ProductID: strings.TrimSpace(req.ProductID),
		RateBps:   req.RateBps,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Upsert(ctx, s.db, &rate); err != nil {
		return domain.Rate{}, err
	}
	return rate, nil
}

func (s *Service) ListRates(ctx context.Context) ([]domain.Rate, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	rates := make([]domain.Rate, 0, len(items))
	for _, item := range items {
		rates = append(rates, *item)
	}
	return rates, nil
}
