package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	payoutdomain "github.com/flasti/ledger/internal/payout/domain"
)

func (s *Server) CreatePayout(c *gin.Context) {
	var req payoutdomain.PayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.payoutSvc.Pay(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
