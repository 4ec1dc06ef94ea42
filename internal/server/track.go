package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	visitdomain "github.com/flasti/ledger/internal/visit/domain"
)

type trackClickQuery struct {
	ProductID string `form:"product_id"`
	Redirect  string `form:"redirect"`
}

// TrackClick records a referral click and hands the attribution token
// back, either as JSON or as a query parameter on the redirect target.
func (s *Server) TrackClick(c *gin.Context) {
	var query trackClickQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var target string
	if query.Redirect != "" {
		var ok bool
		target, ok = redirectTarget(query.Redirect, s.cfg.RedirectHosts)
		if !ok {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	resp, err := s.visitSvc.Track(c.Request.Context(), visitdomain.TrackVisitRequest{
		Code:      c.Param("code"),
		ProductID: query.ProductID,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Referrer:  c.Request.Referer(),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if target != "" {
		c.Redirect(http.StatusFound, appendToken(target, resp.Token))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// redirectTarget validates a requested redirect. Relative paths are
// always allowed; absolute URLs must be http(s) and their host must be
// on the configured allowlist. Anything else is rejected so the public
// endpoint cannot be used as an open redirect.
func redirectTarget(raw string, allowedHosts []string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	if u.Scheme == "" && u.Host == "" {
		// Browsers treat "/\" like "//", so both are absolute for this
		// purpose.
		if !strings.HasPrefix(u.Path, "/") ||
			strings.HasPrefix(u.Path, "//") || strings.HasPrefix(u.Path, `/\`) {
			return "", false
		}
		return u.String(), true
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	host := u.Hostname()
	for _, allowed := range allowedHosts {
		if strings.EqualFold(host, allowed) {
			return u.String(), true
		}
	}
	return "", false
}

func appendToken(target, token string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	values := u.Query()
	values.Set("ref", token)
	u.RawQuery = values.Encode()
	return u.String()
}
