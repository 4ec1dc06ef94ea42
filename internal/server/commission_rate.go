package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	commissiondomain "github.com/flasti/ledger/internal/commission/domain"
)

func (s *Server) ListCommissionRates(c *gin.Context) {
	rates, err := s.commissionSvc.ListRates(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rates": rates})
}

func (s *Server) UpsertCommissionRate(c *gin.Context) {
	var req commissiondomain.UpsertRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	rate, err := s.commissionSvc.UpsertRate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rate)
}
