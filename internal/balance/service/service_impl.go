package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/flasti/ledger/internal/balance/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
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
		log:   p.Log.Named("balance.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Get(ctx context.Context, affiliateID string) (domain.GetBalanceResponse, error) {
	id, err := parseID(affiliateID)
	if err != nil {
		return domain.GetBalanceResponse{}, err
	}

	account, err := s.repo.FindByAffiliate(ctx, s.db, id)
	if err != nil {
		return domain.GetBalanceResponse{}, err
	}
	if account == nil {
		return domain.GetBalanceResponse{}, domain.ErrNotFound
	}

	items, err := s.repo.ListEntries(ctx, s.db, id, 100)
	if err != nil {
		return domain.GetBalanceResponse{}, err
	}

	entries := make([]domain.Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, *item)
	}

	return domain.GetBalanceResponse{
		Account: *account,
		Entries: entries,
	}, nil
}

func (s *Service) Debit(ctx context.Context, req domain.DebitRequest) (domain.DebitResponse, error) {
	id, err := parseID(req.AffiliateID)
	if err != nil {
		return domain.DebitResponse{}, err
	}
	if req.AmountCents <= 0 {
		return domain.DebitResponse{}, domain.ErrInvalidAmount
	}

	var account *domain.Account
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, updated, txErr := s.repo.Debit(ctx, tx, id, req.AmountCents)
		if txErr != nil {
			return txErr
		}
		if !ok {
			return domain.ErrInsufficientFunds
		}
		account = updated

		return s.repo.InsertEntry(ctx, tx, &domain.Entry{
			ID:          s.genID.Generate(),
			AffiliateID: id,
			Type:        domain.EntryDebit,
			AmountCents: req.AmountCents,
			Reference:   strings.TrimSpace(req.Reference),
		})
	})
	if err != nil {
		return domain.DebitResponse{}, err
	}

	s.log.Info("balance debited",
		zap.String("affiliate_id", id.String()),
		zap.Int64("amount_cents", req.AmountCents),
	)

	return domain.DebitResponse{Account: *account}, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidAffiliate
	}
	return id, nil
}
