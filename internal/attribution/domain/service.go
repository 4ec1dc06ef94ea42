package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/flasti/ledger/internal/requestctx"
)

// Source records which branch of the resolution algorithm won.
type Source string

const (
	SourceToken    Source = "token"
	SourceIP       Source = "ip"
	SourceProvider Source = "provider"
)

// Attribution is a positive resolution: the affiliate that gets credit
// for a sale, and the product the referral was for.
type Attribution struct {
	AffiliateID snowflake.ID
	Level       int
	ProductID   string
	Source      Source
}

// Service decides which affiliate, if any, gets credit for a sale.
// Resolution is strictly last-touch: a valid token short-circuits the IP
// fallback. Every failure mode (expired token, unknown or inactive
// affiliate, self-referral) resolves to (nil, nil) — "no affiliate" is a
// normal outcome, never an error.
type Service interface {
	Resolve(ctx context.Context, candidate requestctx.Candidate) (*Attribution, error)
}
