package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetBalance(c *gin.Context) {
	resp, err := s.balanceSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
