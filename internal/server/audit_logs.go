package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	auditdomain "github.com/flasti/ledger/internal/audit/domain"
)

func (s *Server) ListAuditLogs(c *gin.Context) {
	var req auditdomain.ListAuditLogRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.auditSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
