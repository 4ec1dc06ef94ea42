package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

// HandleWebhook ingests one provider delivery. Any 2xx means "stop
// retrying": duplicates are acknowledged with the original sale.
func (s *Server) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.webhookSvc.Process(c.Request.Context(), c.Param("provider"), body)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
