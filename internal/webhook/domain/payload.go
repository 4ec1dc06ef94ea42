package domain

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"
)

type EventType string

const (
	EventSale   EventType = "sale"
	EventRefund EventType = "refund"
)

// Payload is the provider-agnostic shape of an incoming webhook. Amounts
// arrive as decimal strings or JSON numbers; they are normalized to
// integer cents at the boundary and floats never enter the system.
type Payload struct {
	Type          EventType `json:"type"`
	TransactionID string    `json:"transaction_id"`
	ProductID     string    `json:"product_id"`
	ProductName   string    `json:"product_name"`

	// GrossAmount is the sale amount in major units, e.g. "49.99".
	GrossAmount json.Number `json:"gross_amount"`

	// AffiliateID, when present, is a provider-asserted attribution that
	// bypasses token and IP resolution.
	AffiliateID string `json:"affiliate_id"`

	BuyerID          string `json:"buyer_id"`
	BuyerEmail       string `json:"buyer_email"`
	BuyerIP          string `json:"buyer_ip"`
	AttributionToken string `json:"attribution_token"`

	OccurredAt *time.Time `json:"occurred_at"`
}

var (
	ErrMalformedPayload     = errors.New("malformed_payload")
	ErrMissingTransactionID = errors.New("missing_transaction_id")
	ErrMissingProductID     = errors.New("missing_product_id")
	ErrInvalidAmount        = errors.New("invalid_gross_amount")
	ErrUnknownEventType     = errors.New("unknown_event_type")
)

// Parse decodes and validates a raw webhook body.
func Parse(body []byte) (*Payload, error) {
	decoder := json.NewDecoder(strings.NewReader(string(body)))
	decoder.UseNumber()

	var payload Payload
	if err := decoder.Decode(&payload); err != nil {
		return nil, ErrMalformedPayload
	}

	if payload.Type == "" {
		payload.Type = EventSale
	}
	if payload.Type != EventSale && payload.Type != EventRefund {
		return nil, ErrUnknownEventType
	}

	payload.TransactionID = strings.TrimSpace(payload.TransactionID)
	if payload.TransactionID == "" {
		return nil, ErrMissingTransactionID
	}

	if payload.Type == EventSale {
		payload.ProductID = strings.TrimSpace(payload.ProductID)
		if payload.ProductID == "" {
			return nil, ErrMissingProductID
		}
		if _, err := ParseAmountCents(payload.GrossAmount.String()); err != nil {
			return nil, err
		}
	}

	return &payload, nil
}

// GrossCents returns the normalized sale amount.
func (p *Payload) GrossCents() int64 {
	cents, _ := ParseAmountCents(p.GrossAmount.String())
	return cents
}

// ParseAmountCents converts a decimal major-unit amount ("49.99", "100")
// into integer cents using string arithmetic only. More than two
// fractional digits, negatives and zero are rejected.
func ParseAmountCents(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "-") || strings.HasPrefix(raw, "+") {
		return 0, ErrInvalidAmount
	}

	whole, frac := raw, ""
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		whole, frac = raw[:i], raw[i+1:]
	}
	if whole == "" || len(frac) > 2 {
		return 0, ErrInvalidAmount
	}
	for len(frac) < 2 {
		frac += "0"
	}

	var cents int64
	for _, r := range whole + frac {
		if r < '0' || r > '9' {
			return 0, ErrInvalidAmount
		}
		digit := int64(r - '0')
		if cents > (math.MaxInt64-digit)/10 {
			return 0, ErrInvalidAmount
		}
		cents = cents*10 + digit
	}
	if cents == 0 {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}
