package service

import (
	"context"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	balancedomain "github.com/flasti/ledger/internal/balance/domain"
	"github.com/flasti/ledger/internal/payout/domain"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Balance balancedomain.Service
}

type payoutService struct {
	log     *zap.Logger
	balance balancedomain.Service
}

func New(p Params) domain.Service {
	return &payoutService{
		log:     p.Log.Named("payout.service"),
		balance: p.Balance,
	}
}

func (s *payoutService) Pay(ctx context.Context, req domain.PayoutRequest) (domain.PayoutResponse, error) {
	req.Reference = strings.TrimSpace(req.Reference)
	if req.Reference == "" {
		return domain.PayoutResponse{}, domain.ErrInvalidReference
	}

	debited, err := s.balance.Debit(ctx, balancedomain.DebitRequest{
		AffiliateID: req.AffiliateID,
		AmountCents: req.AmountCents,
		Reference:   req.Reference,
	})
	if err != nil {
		return domain.PayoutResponse{}, err
	}

	s.log.Info("payout completed",
		zap.String("affiliate_id", req.AffiliateID),
		zap.Int64("amount_cents", req.AmountCents),
		zap.String("reference", req.Reference),
	)
	return domain.PayoutResponse{
		Account: debited.Account,
		PaidOut: req.AmountCents,
	}, nil
}
