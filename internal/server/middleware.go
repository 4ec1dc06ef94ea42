package server

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const headerRequestID = "X-Request-ID"

// RequestID propagates the caller's request id or mints one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(headerRequestID, id)
		c.Set("request_id", id)
		c.Next()
	}
}

// WebhookAuth enforces the static bearer token providers are configured
// with. The comparison is constant time. An empty configured token
// disables ingestion entirely rather than opening it up.
func (s *Server) WebhookAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := s.cfg.WebhookToken
		if token == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		header := c.GetHeader("Authorization")
		presented, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

// RateLimited applies the Redis token bucket keyed by scope and client
// IP.
func (s *Server) RateLimited(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.clickLimiter.Allow(c.Request.Context(), scope+":"+c.ClientIP()) {
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
