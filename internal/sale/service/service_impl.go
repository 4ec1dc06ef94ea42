package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	affiliatedomain "github.com/flasti/ledger/internal/affiliate/domain"
	auditdomain "github.com/flasti/ledger/internal/audit/domain"
	balancedomain "github.com/flasti/ledger/internal/balance/domain"
	"github.com/flasti/ledger/internal/clock"
	commissiondomain "github.com/flasti/ledger/internal/commission/domain"
	"github.com/flasti/ledger/internal/config"
	eventsdomain "github.com/flasti/ledger/internal/events/domain"
	"github.com/flasti/ledger/internal/observability/metrics"
	"github.com/flasti/ledger/internal/sale/domain"
	"github.com/flasti/ledger/pkg/db/pagination"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Guard *config.GuardConfigHolder

	Repo          domain.Repository
	BalanceRepo   balancedomain.Repository
	AffiliateRepo affiliatedomain.Repository
	Commission    commissiondomain.Service
	Publisher     eventsdomain.Publisher
	Audit         auditdomain.Service
	Metrics       *metrics.Metrics `optional:"true"`
}

type saleService struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	guard *config.GuardConfigHolder

	repo          domain.Repository
	balanceRepo   balancedomain.Repository
	affiliateRepo affiliatedomain.Repository
	commission    commissiondomain.Service
	publisher     eventsdomain.Publisher
	audit         auditdomain.Service
	metrics       *metrics.Metrics
}

func New(p Params) domain.Service {
	return &saleService{
		db:            p.DB,
		log:           p.Log.Named("sale.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		guard:         p.Guard,
		repo:          p.Repo,
		balanceRepo:   p.BalanceRepo,
		affiliateRepo: p.AffiliateRepo,
		commission:    p.Commission,
		publisher:     p.Publisher,
		audit:         p.Audit,
		metrics:       p.Metrics,
	}
}

// Record writes the sale plus, for an attributed sale, its commission
// credit, level promotion, balance entry and outbox event, all in one
// transaction keyed on the unique transaction_id. A duplicate delivery
// loses the insert and returns the original row untouched, so N
// concurrent deliveries of the same transaction produce exactly one
// sale and exactly one credit.
func (s *saleService) Record(ctx context.Context, req domain.RecordRequest) (*domain.RecordResult, error) {
	req.TransactionID = strings.TrimSpace(req.TransactionID)
	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.TransactionID == "" {
		return nil, domain.ErrInvalidTransaction
	}
	if req.ProductID == "" {
		return nil, domain.ErrInvalidProduct
	}
	if req.GrossCents <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if req.OccurredAt.IsZero() {
		req.OccurredAt = s.clock.Now()
	}

	var rateBps, commissionCents int64
	if req.AffiliateID != nil {
		quote, err := s.commission.QuoteRate(ctx, req.AffiliateLevel, req.ProductID)
		if err != nil {
			return nil, err
		}
		rateBps = quote.RateBps
		commissionCents = commissiondomain.Commission(req.GrossCents, quote.RateBps)
	}

	sale := &domain.Sale{
		ID:                s.genID.Generate(),
		TransactionID:     req.TransactionID,
		AffiliateID:       req.AffiliateID,
		ProductID:         req.ProductID,
		ProductName:       req.ProductName,
		GrossCents:        req.GrossCents,
		CommissionCents:   commissionCents,
		RateBps:           rateBps,
		BuyerID:           req.BuyerID,
		BuyerEmail:        req.BuyerEmail,
		IPAddress:         req.IPAddress,
		Status:            domain.StatusApproved,
		AttributionSource: req.AttributionSource,
		Provider:          req.Provider,
		OccurredAt:        req.OccurredAt,
	}

	result := &domain.RecordResult{}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		created, err := s.repo.InsertIfAbsent(ctx, tx, sale)
		if err != nil {
			return err
		}
		if !created {
			existing, err := s.repo.FindByTransactionID(ctx, tx, req.TransactionID)
			if err != nil {
				return err
			}
			result.Sale = existing
			result.Created = false
			return nil
		}
		result.Sale = sale
		result.Created = true

		if req.AffiliateID == nil || commissionCents <= 0 {
			return nil
		}
		affiliateID := *req.AffiliateID

		if err := s.balanceRepo.EnsureAccount(ctx, tx, affiliateID); err != nil {
			return err
		}
		account, err := s.balanceRepo.Credit(ctx, tx, affiliateID, commissionCents)
		if err != nil {
			return err
		}

		earned := balancedomain.LevelFor(account.LifetimeCreditedCents, s.guard.Get().LevelThresholdCents)
		if earned > req.AffiliateLevel {
			if _, err := s.affiliateRepo.PromoteLevel(ctx, tx, affiliateID, earned); err != nil {
				return err
			}
		}

		entry := &balancedomain.Entry{
			ID:          s.genID.Generate(),
			AffiliateID: affiliateID,
			Type:        balancedomain.EntryCredit,
			AmountCents: commissionCents,
			Reference:   req.TransactionID,
			CreatedAt:   s.clock.Now(),
		}
		if err := s.balanceRepo.InsertEntry(ctx, tx, entry); err != nil {
			return err
		}

		return s.publisher.Enqueue(ctx, tx, eventsdomain.TypeSaleRecorded, req.TransactionID, map[string]any{
			"transaction_id":   req.TransactionID,
			"affiliate_id":     affiliateID.String(),
			"product_id":       req.ProductID,
			"product_name":     req.ProductName,
			"gross_cents":      req.GrossCents,
			"commission_cents": commissionCents,
			"rate_bps":         rateBps,
			"source":           req.AttributionSource,
		})
	})
	if err != nil {
		return nil, err
	}

	if result.Created {
		s.metrics.RecordSale(ctx, result.Sale.Attributed())
		if result.Sale.Attributed() && commissionCents > 0 {
			s.metrics.RecordCredit(ctx, commissionCents)
		}
		s.log.Info("sale recorded",
			zap.String("transaction_id", req.TransactionID),
			zap.Bool("attributed", result.Sale.Attributed()),
			zap.Int64("gross_cents", req.GrossCents),
			zap.Int64("commission_cents", commissionCents),
		)
	} else {
		s.metrics.RecordDuplicateSale(ctx)
		s.log.Info("duplicate sale ignored", zap.String("transaction_id", req.TransactionID))
	}
	return result, nil
}

// Refund flips an approved sale to refunded and backs out its
// commission. The status guard in MarkRefunded makes the reversal
// happen at most once even under concurrent refund requests.
func (s *saleService) Refund(ctx context.Context, transactionID, ipAddress string) (*domain.Sale, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, domain.ErrInvalidTransaction
	}

	var refunded *domain.Sale
	err := s.db.Transaction(func(tx *gorm.DB) error {
		sale, err := s.repo.FindByTransactionID(ctx, tx, transactionID)
		if err != nil {
			return err
		}

		flipped, err := s.repo.MarkRefunded(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if !flipped {
			return domain.ErrAlreadyRefunded
		}
		sale.Status = domain.StatusRefunded
		refunded = sale

		if !sale.Attributed() || sale.CommissionCents <= 0 {
			return nil
		}
		affiliateID := *sale.AffiliateID

		if _, err := s.balanceRepo.Reverse(ctx, tx, affiliateID, sale.CommissionCents); err != nil {
			return err
		}
		entry := &balancedomain.Entry{
			ID:          s.genID.Generate(),
			AffiliateID: affiliateID,
			Type:        balancedomain.EntryReversal,
			AmountCents: sale.CommissionCents,
			Reference:   transactionID,
			CreatedAt:   s.clock.Now(),
		}
		if err := s.balanceRepo.InsertEntry(ctx, tx, entry); err != nil {
			return err
		}

		return s.publisher.Enqueue(ctx, tx, eventsdomain.TypeSaleRefunded, transactionID, map[string]any{
			"transaction_id":   transactionID,
			"affiliate_id":     affiliateID.String(),
			"product_id":       sale.ProductID,
			"product_name":     sale.ProductName,
			"commission_cents": sale.CommissionCents,
		})
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, auditdomain.ActionSaleRefunded, "sale", transactionID, ipAddress, map[string]any{
		"commission_cents": refunded.CommissionCents,
	})
	s.log.Info("sale refunded",
		zap.String("transaction_id", transactionID),
		zap.Int64("commission_cents", refunded.CommissionCents),
	)
	return refunded, nil
}

func (s *saleService) GetByTransactionID(ctx context.Context, transactionID string) (*domain.Sale, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, domain.ErrInvalidTransaction
	}
	return s.repo.FindByTransactionID(ctx, s.db, transactionID)
}

func (s *saleService) List(ctx context.Context, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Sale, *pagination.PageInfo, error) {
	if page.PageSize <= 0 || page.PageSize > 100 {
		page.PageSize = 50
	}
	sales, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return nil, nil, err
	}
	pageInfo := pagination.BuildCursorPageInfo(sales, page.PageSize, func(sl *domain.Sale) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{
			ID:        sl.ID.String(),
			CreatedAt: sl.CreatedAt.Format(time.RFC3339),
		})
		return token
	})
	if pageInfo.HasMore {
		sales = sales[:page.PageSize]
	}
	return sales, pageInfo, nil
}
