// Package requestctx carries the per-request attribution inputs from the
// transport layer into the resolver: the attribution token, the buyer's
// IP and the buyer's identity. It replaces any cookie- or session-derived
// implicit state.
package requestctx

import "strings"

// Candidate is the explicit request-context value object handed to the
// attribution resolver.
type Candidate struct {
	BuyerID          string
	BuyerEmail       string
	AttributionToken string
	BuyerIP          string
}

// Normalize trims all fields in place.
func (c Candidate) Normalize() Candidate {
	return Candidate{
		BuyerID:          strings.TrimSpace(c.BuyerID),
		BuyerEmail:       strings.ToLower(strings.TrimSpace(c.BuyerEmail)),
		AttributionToken: strings.TrimSpace(c.AttributionToken),
		BuyerIP:          strings.TrimSpace(c.BuyerIP),
	}
}
