package middleware

import (
	"github.com/gin-gonic/gin"

	"git.sr.ht/~aondrejcak/policy-console/kernel"
)

// AuthMiddleware requires an operator login when one is configured.
func AuthMiddleware(art *kernel.AppRuntime) gin.HandlerFunc {
	if art.JWT == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return art.JWT.MiddlewareFunc()
}
