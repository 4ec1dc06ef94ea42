package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	affiliatedomain "github.com/flasti/ledger/internal/affiliate/domain"
	"github.com/flasti/ledger/internal/attribution/domain"
	auditdomain "github.com/flasti/ledger/internal/audit/domain"
	"github.com/flasti/ledger/internal/clock"
	"github.com/flasti/ledger/internal/config"
	"github.com/flasti/ledger/internal/fraud"
	"github.com/flasti/ledger/internal/requestctx"
	visitdomain "github.com/flasti/ledger/internal/visit/domain"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Guard *config.GuardConfigHolder

	AffiliateRepo affiliatedomain.Repository
	VisitRepo     visitdomain.Repository
	Audit         auditdomain.Service
}

type resolver struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	guard *config.GuardConfigHolder

	affiliateRepo affiliatedomain.Repository
	visitRepo     visitdomain.Repository
	audit         auditdomain.Service
}

func New(p Params) domain.Service {
	return &resolver{
		db:            p.DB,
		log:           p.Log.Named("attribution.resolver"),
		clock:         p.Clock,
		guard:         p.Guard,
		affiliateRepo: p.AffiliateRepo,
		visitRepo:     p.VisitRepo,
		audit:         p.Audit,
	}
}

// Resolve walks the last-touch ladder: a valid token wins outright, an
// in-window visit from the buyer's IP is the fallback. An expired or
// malformed token is treated as absent, so the IP fallback still runs.
// A live token that fails the affiliate checks (unknown, inactive,
// self-referral) resolves to none without falling back: the token names
// exactly one affiliate, and credit must not drift to another.
func (s *resolver) Resolve(ctx context.Context, candidate requestctx.Candidate) (*domain.Attribution, error) {
	candidate = candidate.Normalize()
	now := s.clock.Now()
	window := s.guard.Get().AttributionWindow()

	if token := domain.DecodeToken(candidate.AttributionToken); token != nil {
		if !token.Expired(now, window) {
			return s.check(ctx, token.AffiliateID, token.ProductID, domain.SourceToken, candidate)
		}
		s.log.Debug("token expired", zap.String("affiliate_id", token.AffiliateID.String()))
	}

	if candidate.BuyerIP == "" {
		return nil, nil
	}
	visit, err := s.visitRepo.LatestByIP(ctx, s.db, candidate.BuyerIP, now.Add(-window))
	if err != nil {
		return nil, err
	}
	if visit == nil {
		return nil, nil
	}
	return s.check(ctx, visit.AffiliateID, visit.ProductID, domain.SourceIP, candidate)
}

func (s *resolver) check(ctx context.Context, affiliateID snowflake.ID, productID string, source domain.Source, candidate requestctx.Candidate) (*domain.Attribution, error) {
	affiliate, err := s.affiliateRepo.FindByID(ctx, s.db, affiliateID)
	if err != nil {
		return nil, err
	}
	if affiliate == nil || !affiliate.Active() {
		return nil, nil
	}
	if fraud.SelfReferral(affiliate, candidate) {
		s.audit.Log(ctx, auditdomain.ActionSelfReferralBlocked, "affiliate", affiliate.ID.String(), candidate.BuyerIP, map[string]any{
			"source":      string(source),
			"product_id":  productID,
			"buyer_id":    candidate.BuyerID,
			"buyer_email": candidate.BuyerEmail,
		})
		return nil, nil
	}
	return &domain.Attribution{
		AffiliateID: affiliate.ID,
		Level:       affiliate.Level,
		ProductID:   productID,
		Source:      source,
	}, nil
}
