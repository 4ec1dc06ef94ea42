package domain

import (
	"context"

	saledomain "github.com/flasti/ledger/internal/sale/domain"
)

type Outcome string

const (
	OutcomeRecorded  Outcome = "recorded"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRefunded  Outcome = "refunded"
)

// Result is the acknowledgement returned to the provider. Duplicate
// deliveries are acknowledged with the original sale: providers retry
// until they see 2xx, so a duplicate must never look like a failure.
type Result struct {
	Outcome Outcome          `json:"outcome"`
	Sale    *saledomain.Sale `json:"sale"`
	Flags   []string         `json:"flags,omitempty"`
}

type Service interface {
	// Process ingests one webhook delivery from provider. It owns
	// normalization, attribution and the velocity check; the sale service
	// owns the ledger transaction.
	Process(ctx context.Context, provider string, body []byte) (*Result, error)
}
