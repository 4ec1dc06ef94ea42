package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	affiliatedomain "github.com/flasti/ledger/internal/affiliate/domain"
	attributiondomain "github.com/flasti/ledger/internal/attribution/domain"
	"github.com/flasti/ledger/internal/fraud"
	"github.com/flasti/ledger/internal/observability/metrics"
	"github.com/flasti/ledger/internal/requestctx"
	saledomain "github.com/flasti/ledger/internal/sale/domain"
	"github.com/flasti/ledger/internal/webhook/domain"
)

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger

	AffiliateRepo affiliatedomain.Repository
	Resolver      attributiondomain.Service
	Sales         saledomain.Service
	Fraud         *fraud.Guard
	Metrics       *metrics.Metrics `optional:"true"`
}

type webhookService struct {
	db  *gorm.DB
	log *zap.Logger

	affiliateRepo affiliatedomain.Repository
	resolver      attributiondomain.Service
	sales         saledomain.Service
	fraud         *fraud.Guard
	metrics       *metrics.Metrics
}

func New(p Params) domain.Service {
	return &webhookService{
		db:            p.DB,
		log:           p.Log.Named("webhook.service"),
		affiliateRepo: p.AffiliateRepo,
		resolver:      p.Resolver,
		sales:         p.Sales,
		fraud:         p.Fraud,
		metrics:       p.Metrics,
	}
}

func (s *webhookService) Process(ctx context.Context, provider string, body []byte) (*domain.Result, error) {
	payload, err := domain.Parse(body)
	if err != nil {
		s.metrics.RecordWebhookEvent(ctx, provider, "rejected")
		return nil, err
	}

	var result *domain.Result
	switch payload.Type {
	case domain.EventRefund:
		result, err = s.processRefund(ctx, payload)
	default:
		result, err = s.processSale(ctx, provider, payload)
	}
	if err != nil {
		s.metrics.RecordWebhookEvent(ctx, provider, "failed")
		return nil, err
	}
	s.metrics.RecordWebhookEvent(ctx, provider, string(result.Outcome))
	return result, nil
}

func (s *webhookService) processSale(ctx context.Context, provider string, payload *domain.Payload) (*domain.Result, error) {
	candidate := requestctx.Candidate{
		BuyerID:          payload.BuyerID,
		BuyerEmail:       payload.BuyerEmail,
		AttributionToken: payload.AttributionToken,
		BuyerIP:          payload.BuyerIP,
	}.Normalize()

	attribution, err := s.attribute(ctx, payload, candidate)
	if err != nil {
		return nil, err
	}

	req := saledomain.RecordRequest{
		TransactionID: payload.TransactionID,
		ProductID:     payload.ProductID,
		ProductName:   payload.ProductName,
		GrossCents:    payload.GrossCents(),
		BuyerID:       candidate.BuyerID,
		BuyerEmail:    candidate.BuyerEmail,
		IPAddress:     candidate.BuyerIP,
		Provider:      provider,
	}
	if payload.OccurredAt != nil {
		req.OccurredAt = *payload.OccurredAt
	}
	if attribution != nil {
		req.AffiliateID = &attribution.AffiliateID
		req.AffiliateLevel = attribution.Level
		req.AttributionSource = string(attribution.Source)
	}

	recorded, err := s.sales.Record(ctx, req)
	if err != nil {
		return nil, err
	}
	if !recorded.Created {
		return &domain.Result{Outcome: domain.OutcomeDuplicate, Sale: recorded.Sale}, nil
	}

	flags := s.fraud.CheckVelocity(ctx, candidate.BuyerIP, req.AffiliateID)
	return &domain.Result{
		Outcome: domain.OutcomeRecorded,
		Sale:    recorded.Sale,
		Flags:   flags,
	}, nil
}

func (s *webhookService) processRefund(ctx context.Context, payload *domain.Payload) (*domain.Result, error) {
	sale, err := s.sales.Refund(ctx, payload.TransactionID, payload.BuyerIP)
	if err != nil {
		// A refund retry after a successful refund is a duplicate
		// delivery, acknowledged like any other.
		if errors.Is(err, saledomain.ErrAlreadyRefunded) {
			existing, findErr := s.sales.GetByTransactionID(ctx, payload.TransactionID)
			if findErr != nil {
				return nil, findErr
			}
			return &domain.Result{Outcome: domain.OutcomeDuplicate, Sale: existing}, nil
		}
		return nil, err
	}
	return &domain.Result{Outcome: domain.OutcomeRefunded, Sale: sale}, nil
}

// attribute resolves the credited affiliate. A provider-asserted
// affiliate ID bypasses token and IP resolution but still has to point
// at an active affiliate and still goes through the self-referral check.
func (s *webhookService) attribute(ctx context.Context, payload *domain.Payload, candidate requestctx.Candidate) (*attributiondomain.Attribution, error) {
	if payload.AffiliateID == "" {
		return s.resolver.Resolve(ctx, candidate)
	}

	id, err := snowflake.ParseString(payload.AffiliateID)
	if err != nil {
		s.log.Warn("provider sent unparseable affiliate id", zap.String("affiliate_id", payload.AffiliateID))
		return nil, nil
	}
	affiliate, err := s.affiliateRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if affiliate == nil || !affiliate.Active() {
		return nil, nil
	}
	if fraud.SelfReferral(affiliate, candidate) {
		return nil, nil
	}
	return &attributiondomain.Attribution{
		AffiliateID: affiliate.ID,
		Level:       affiliate.Level,
		ProductID:   payload.ProductID,
		Source:      attributiondomain.SourceProvider,
	}, nil
}
