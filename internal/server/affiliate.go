package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	affiliatedomain "github.com/flasti/ledger/internal/affiliate/domain"
)

func (s *Server) CreateAffiliate(c *gin.Context) {
	var req affiliatedomain.CreateAffiliateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	affiliate, err := s.affiliateSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, affiliate)
}

func (s *Server) GetAffiliate(c *gin.Context) {
	affiliate, err := s.affiliateSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, affiliate)
}

func (s *Server) ListAffiliates(c *gin.Context) {
	var req affiliatedomain.ListAffiliateRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.affiliateSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) DeactivateAffiliate(c *gin.Context) {
	if err := s.affiliateSvc.Deactivate(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
