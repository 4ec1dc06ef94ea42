package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	affiliatedomain "github.com/flasti/ledger/internal/affiliate/domain"
	attributiondomain "github.com/flasti/ledger/internal/attribution/domain"
	"github.com/flasti/ledger/internal/clock"
	"github.com/flasti/ledger/internal/visit/domain"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock

	Repo          domain.Repository
	AffiliateRepo affiliatedomain.Repository
}

type visitService struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	repo          domain.Repository
	affiliateRepo affiliatedomain.Repository
}

func New(p Params) domain.Service {
	return &visitService{
		db:            p.DB,
		log:           p.Log.Named("visit.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		affiliateRepo: p.AffiliateRepo,
	}
}

func (s *visitService) Track(ctx context.Context, req domain.TrackVisitRequest) (domain.TrackVisitResponse, error) {
	req.Code = strings.TrimSpace(req.Code)
	req.ProductID = strings.TrimSpace(req.ProductID)
	req.IPAddress = strings.TrimSpace(req.IPAddress)
	if req.Code == "" {
		return domain.TrackVisitResponse{}, domain.ErrInvalidCode
	}
	if req.ProductID == "" {
		return domain.TrackVisitResponse{}, domain.ErrInvalidProduct
	}
	if req.IPAddress == "" {
		return domain.TrackVisitResponse{}, domain.ErrInvalidIP
	}

	affiliate, err := s.affiliateRepo.FindByCode(ctx, s.db, req.Code)
	if err != nil {
		return domain.TrackVisitResponse{}, err
	}
	if affiliate == nil || !affiliate.Active() {
		return domain.TrackVisitResponse{}, domain.ErrInvalidCode
	}

	now := s.clock.Now()
	visit := &domain.Visit{
		ID:          s.genID.Generate(),
		AffiliateID: affiliate.ID,
		ProductID:   req.ProductID,
		IPAddress:   req.IPAddress,
		UserAgent:   req.UserAgent,
		Referrer:    req.Referrer,
		OccurredAt:  now,
	}
	if err := s.repo.Insert(ctx, s.db, visit); err != nil {
		return domain.TrackVisitResponse{}, err
	}

	s.log.Debug("visit tracked",
		zap.String("code", req.Code),
		zap.String("product_id", req.ProductID),
	)
	return domain.TrackVisitResponse{
		Visit: *visit,
		Token: attributiondomain.EncodeToken(affiliate.ID, req.ProductID, now),
	}, nil
}
