package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.nhat.io/otelsql/attribute"

	"git.sr.ht/~aondrejcak/policy-console/kernel"
)

// OriginMiddleware rejects state changing requests a browser sent on behalf of
// another site. Sec-Fetch-Site is checked first, Origin covers older browsers.
// Requests carrying neither header (curl, scripts) pass.
func OriginMiddleware(art *kernel.AppRuntime) gin.HandlerFunc {
	trusted := make(map[string]bool, len(art.CorsOrigins))
	for _, o := range art.CorsOrigins {
		trusted[strings.TrimRight(o, "/")] = true
	}

	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		rt := c.MustGet("rt").(*kernel.RequestRuntime)
		if reason := crossSite(c.Request, trusted); reason != "" {
			rt.Span.SetAttributes(attribute.KeyValue("request.cross_site", reason))
			log.Warn().Str("origin", c.GetHeader("Origin")).Str("path", c.Request.URL.Path).
				Msg("rejected cross-site request")
			rt.Ef(http.StatusForbidden, "cross-site request rejected: %s", reason)
			return
		}
		c.Next()
	}
}

func crossSite(r *http.Request, trusted map[string]bool) string {
	origin := r.Header.Get("Origin")
	if origin != "" && origin != "null" {
		if trusted[origin] {
			return ""
		}
		if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
			return ""
		}
	}

	switch r.Header.Get("Sec-Fetch-Site") {
	case "cross-site", "same-site":
		return "Sec-Fetch-Site " + r.Header.Get("Sec-Fetch-Site")
	}
	if origin != "" {
		return "origin " + origin
	}
	return ""
}
