package domain

import (
	"context"
	"errors"
)

type TrackVisitRequest struct {
	Code      string
	ProductID string
	IPAddress string
	UserAgent string
	Referrer  string
}

type TrackVisitResponse struct {
	Visit Visit  `json:"visit"`
	Token string `json:"token"`
}

type Service interface {
	// Track records a referral click and issues the attribution token the
	// transport layer hands back to the client.
	Track(ctx context.Context, req TrackVisitRequest) (TrackVisitResponse, error)
}

var (
	ErrInvalidCode    = errors.New("invalid_code")
	ErrInvalidProduct = errors.New("invalid_product")
	ErrInvalidIP      = errors.New("invalid_ip")
)
