package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	affiliatedomain "github.com/flasti/ledger/internal/affiliate/domain"
	auditdomain "github.com/flasti/ledger/internal/audit/domain"
	balancedomain "github.com/flasti/ledger/internal/balance/domain"
	commissiondomain "github.com/flasti/ledger/internal/commission/domain"
	payoutdomain "github.com/flasti/ledger/internal/payout/domain"
	saledomain "github.com/flasti/ledger/internal/sale/domain"
	visitdomain "github.com/flasti/ledger/internal/visit/domain"
	webhookdomain "github.com/flasti/ledger/internal/webhook/domain"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, balancedomain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "insufficient_funds",
			Message: "balance is below the requested amount",
		}
	case errors.Is(err, saledomain.ErrAlreadyRefunded):
		return http.StatusConflict, errorPayload{
			Type:    "already_refunded",
			Message: "sale is already refunded",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, affiliatedomain.ErrNotFound),
		errors.Is(err, balancedomain.ErrNotFound),
		errors.Is(err, saledomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, affiliatedomain.ErrInvalidName),
		errors.Is(err, affiliatedomain.ErrInvalidEmail),
		errors.Is(err, affiliatedomain.ErrInvalidID),
		errors.Is(err, affiliatedomain.ErrInvalidCode),
		errors.Is(err, affiliatedomain.ErrInactive),
		errors.Is(err, visitdomain.ErrInvalidCode),
		errors.Is(err, visitdomain.ErrInvalidProduct),
		errors.Is(err, visitdomain.ErrInvalidIP),
		errors.Is(err, saledomain.ErrInvalidTransaction),
		errors.Is(err, saledomain.ErrInvalidAmount),
		errors.Is(err, saledomain.ErrInvalidProduct),
		errors.Is(err, balancedomain.ErrInvalidAmount),
		errors.Is(err, balancedomain.ErrInvalidAffiliate),
		errors.Is(err, commissiondomain.ErrInvalidLevel),
		errors.Is(err, commissiondomain.ErrInvalidRate),
		errors.Is(err, payoutdomain.ErrInvalidReference),
		errors.Is(err, auditdomain.ErrInvalidAction),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, webhookdomain.ErrMalformedPayload),
		errors.Is(err, webhookdomain.ErrMissingTransactionID),
		errors.Is(err, webhookdomain.ErrMissingProductID),
		errors.Is(err, webhookdomain.ErrInvalidAmount),
		errors.Is(err, webhookdomain.ErrUnknownEventType):
		return true
	default:
		return false
	}
}
