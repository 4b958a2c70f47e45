package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"git.sr.ht/~aondrejcak/policy-console/kernel"
	"git.sr.ht/~aondrejcak/policy-console/models"
	"git.sr.ht/~aondrejcak/policy-console/store"
)

// SessionMiddleware attaches the browser's console session to the request,
// starting a new one when the cookie is missing, unknown or expired.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rt := c.MustGet("rt").(*kernel.RequestRuntime)
		art := rt.AppRuntime

		rt.StepInto("middleware.session")

		if token, err := c.Cookie(kernel.SESSION_COOKIE); err == nil && token != "" {
			sess, err := rt.Store.Session(rt.SpanContext, kernel.Sha512(token))
			switch {
			case err == nil:
				rt.Session = sess
				rt.SessionToken = token
				rt.EndBlock()
				c.Next()
				return
			case !errors.Is(err, store.ErrNotFound):
				rt.Ef(http.StatusInternalServerError, "failed to load session: %s", err)
				return
			}
		}

		token, key, err := kernel.NewSessionToken()
		if err != nil {
			rt.E(http.StatusInternalServerError, err)
			return
		}

		rt.Session = &models.Session{
			ID:        key,
			ExpiresAt: time.Now().Add(art.SessionTTL),
		}
		if err := rt.Store.SaveSession(rt.SpanContext, rt.Session); err != nil {
			rt.Ef(http.StatusInternalServerError, "failed to create session: %s", err)
			return
		}
		log.Debug().Str("session", key[:16]).Msg("started session")

		rt.SessionToken = token
		rt.SetSessionCookie()

		rt.EndBlock()
		c.Next()
	}
}
