package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	saledomain "github.com/flasti/ledger/internal/sale/domain"
	"github.com/flasti/ledger/pkg/db/pagination"
)

type listSalesQuery struct {
	pagination.Pagination
	AffiliateID string `form:"affiliate_id"`
	Status      string `form:"status"`
}

func (s *Server) ListSales(c *gin.Context) {
	var query listSalesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	filter := saledomain.ListFilter{Status: saledomain.Status(query.Status)}
	if query.AffiliateID != "" {
		id, err := snowflake.ParseString(query.AffiliateID)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		filter.AffiliateID = id
	}

	sales, pageInfo, err := s.saleSvc.List(c.Request.Context(), filter, query.Pagination)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sales":     sales,
		"page_info": pageInfo,
	})
}

func (s *Server) GetSale(c *gin.Context) {
	sale, err := s.saleSvc.GetByTransactionID(c.Request.Context(), c.Param("transaction_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

func (s *Server) RefundSale(c *gin.Context) {
	sale, err := s.saleSvc.Refund(c.Request.Context(), c.Param("transaction_id"), c.ClientIP())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}
