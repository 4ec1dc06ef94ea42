package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Attribution tokens are opaque strings of the form
// "<affiliateID>_<productID>_<issuedUnix>". The issued timestamp lets the
// resolver age tokens out after the attribution window even when the
// transport's own expiry failed to. Legacy two-segment tokens (no
// timestamp) are accepted and treated as transport-expired only.
const tokenDelimiter = "_"

type Token struct {
	AffiliateID snowflake.ID
	ProductID   string
	IssuedAt    time.Time // zero when the token carries no timestamp
}

func EncodeToken(affiliateID snowflake.ID, productID string, issuedAt time.Time) string {
	return strings.Join([]string{
		affiliateID.String(),
		productID,
		strconv.FormatInt(issuedAt.UTC().Unix(), 10),
	}, tokenDelimiter)
}

// DecodeToken parses raw. A malformed token decodes to (nil, nil): bad
// tokens mean "no attribution", never an error.
func DecodeToken(raw string) *Token {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, tokenDelimiter)
	if len(parts) < 2 || len(parts) > 3 {
		return nil
	}

	affiliateID, err := snowflake.ParseString(parts[0])
	if err != nil || affiliateID == 0 {
		return nil
	}

	productID := strings.TrimSpace(parts[1])
	if productID == "" {
		return nil
	}

	token := &Token{
		AffiliateID: affiliateID,
		ProductID:   productID,
	}
	if len(parts) == 3 {
		issued, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return nil
		}
		token.IssuedAt = time.Unix(issued, 0).UTC()
	}
	return token
}

// Expired reports whether the token aged past window at now. Tokens
// without an issued timestamp never expire here.
func (t *Token) Expired(now time.Time, window time.Duration) bool {
	if t == nil || t.IssuedAt.IsZero() {
		return false
	}
	return now.Sub(t.IssuedAt) > window
}
