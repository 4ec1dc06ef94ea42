package domain

import (
	"context"
	"errors"
)

// Quote is the rate chosen for one sale plus where it came from.
type Quote struct {
	RateBps int64      `json:"rate_bps"`
	Source  RateSource `json:"source"`
}

type UpsertRateRequest struct {
	Level     int    `json:"level"`
	ProductID string `json:"product_id"`
	RateBps   int64  `json:"rate_bps"`
}

type Service interface {
	// QuoteRate resolves the rate for (level, productID):
	// product+level -> level default -> global default. Fallbacks past
	// the first rung are logged and counted; a missing rate never blocks
	// a sale.
	QuoteRate(ctx context.Context, level int, productID string) (Quote, error)

	UpsertRate(ctx context.Context, req UpsertRateRequest) (Rate, error)
	ListRates(ctx context.Context) ([]Rate, error)
}

var (
	ErrInvalidLevel = errors.New("invalid_level")
	ErrInvalidRate  = errors.New("invalid_rate")
)
