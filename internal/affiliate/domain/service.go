package domain

import (
	"context"
	"errors"

	"github.com/flasti/ledger/pkg/db/pagination"
)

type CreateAffiliateRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type ListAffiliateRequest struct {
	pagination.Pagination
	Status string `form:"status"`
	Email  string `form:"email"`
}

type ListAffiliateResponse struct {
	pagination.PageInfo
	Affiliates []Affiliate `json:"affiliates"`
}

type Service interface {
	Create(ctx context.Context, req CreateAffiliateRequest) (Affiliate, error)
	GetByID(ctx context.Context, id string) (Affiliate, error)
	GetByCode(ctx context.Context, code string) (Affiliate, error)
	List(ctx context.Context, req ListAffiliateRequest) (ListAffiliateResponse, error)
	Deactivate(ctx context.Context, id string) error
}

var (
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidEmail = errors.New("invalid_email")
	ErrInvalidID    = errors.New("invalid_id")
	ErrInvalidCode  = errors.New("invalid_code")
	ErrNotFound     = errors.New("affiliate_not_found")
	ErrInactive     = errors.New("affiliate_inactive")
)
