package domain

import (
	"context"
)

type GetBalanceResponse struct {
	Account Account `json:"account"`
	Entries []Entry `json:"entries"`
}

type DebitRequest struct {
	AffiliateID string `json:"affiliate_id"`
	AmountCents int64  `json:"amount_cents"`
	Reference   string `json:"reference"`
}

type DebitResponse struct {
	Account Account `json:"account"`
}

// Service is the payout-facing balance contract. Credits happen only
// inside sale recording; the only mutations exposed here are the debit
// used by the payout collaborator and reads.
type Service interface {
	Get(ctx context.Context, affiliateID string) (GetBalanceResponse, error)

	// Debit fails with ErrInsufficientFunds and no partial mutation when
	// the amount exceeds the current balance.
	Debit(ctx context.Context, req DebitRequest) (DebitResponse, error)
}
