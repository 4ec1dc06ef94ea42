package domain

import (
	"context"
	"errors"

	balancedomain "github.com/flasti/ledger/internal/balance/domain"
)

type PayoutRequest struct {
	AffiliateID string `json:"affiliate_id"`
	AmountCents int64  `json:"amount_cents"`
	Reference   string `json:"reference"`
}

type PayoutResponse struct {
	Account balancedomain.Account `json:"account"`
	PaidOut int64                 `json:"paid_out_cents"`
}

// Service is the payout collaborator's entry point. It is a thin
// wrapper over the balance debit: the all-or-nothing funds guard lives
// in the balance layer, not here.
type Service interface {
	Pay(ctx context.Context, req PayoutRequest) (PayoutResponse, error)
}

var ErrInvalidReference = errors.New("invalid_reference")
