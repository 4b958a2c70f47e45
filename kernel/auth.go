package kernel

import (
	"net/http"
	"time"

	"github.com/appleboy/gin-jwt/v2"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"git.sr.ht/~aondrejcak/policy-console/models"
)

const (
	LOGIN_PATH  = "/login"
	HOME_PATH   = "/chat"
	JWT_COOKIE  = "jwt"
	jwtLifetime = 12 * time.Hour
)

type LoginDto struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// PrepareAuth builds the cookie based JWT middleware. It is a no-op when no
// secret key is configured and the console stays open.
func (art *AppRuntime) PrepareAuth() error {
	if !art.AuthEnabled() {
		log.Warn().Msg("SEC_JWT_SECRET_KEY not set, operator login is disabled")
		return nil
	}

	mw, err := jwt.New(&jwt.GinJWTMiddleware{
		Realm:       art.Realm,
		Key:         art.SecretKey,
		IdentityKey: art.IdentityKey,
		Timeout:     jwtLifetime,
		MaxRefresh:  jwtLifetime,

		TokenLookup:    "cookie:" + JWT_COOKIE,
		SendCookie:     true,
		CookieName:     JWT_COOKIE,
		CookieHTTPOnly: true,
		SecureCookie:   art.IsProduction(),
		CookieSameSite: http.SameSiteLaxMode,

		Authenticator: func(c *gin.Context) (interface{}, error) {
			var dto LoginDto
			if err := c.ShouldBind(&dto); err != nil {
				return nil, jwt.ErrMissingLoginValues
			}
			if dto.Email == "" || dto.Password == "" {
				return nil, jwt.ErrMissingLoginValues
			}
			op, err := art.AuthenticateOperator(c.Request.Context(), dto.Email, dto.Password)
			if err != nil {
				log.Info().Str("email", dto.Email).Err(err).Msg("login rejected")
				return nil, jwt.ErrFailedAuthentication
			}
			return op, nil
		},
		PayloadFunc: func(data interface{}) jwt.MapClaims {
			if op, ok := data.(*models.Operator); ok {
				return jwt.MapClaims{
					art.IdentityKey: op.Email,
					"name":          op.FullName,
					"role":          op.Role,
				}
			}
			return jwt.MapClaims{}
		},
		IdentityHandler: func(c *gin.Context) interface{} {
			return jwt.ExtractClaims(c)[art.IdentityKey]
		},
		Authorizator: func(data interface{}, c *gin.Context) bool {
			email, ok := data.(string)
			if !ok || email == "" {
				return false
			}
			if v, exists := c.Get("rt"); exists {
				v.(*RequestRuntime).Operator = email
			}
			return true
		},
		Unauthorized: func(c *gin.Context, code int, message string) {
			if c.Request.Method == http.MethodPost && c.FullPath() == LOGIN_PATH {
				c.HTML(code, "login.html", gin.H{"Title": "🔐 Operator Login", "Error": message, "Email": c.PostForm("email")})
				return
			}
			c.Redirect(http.StatusFound, LOGIN_PATH)
		},
		LoginResponse: func(c *gin.Context, _ int, _ string, _ time.Time) {
			c.Redirect(http.StatusSeeOther, HOME_PATH)
		},
		LogoutResponse: func(c *gin.Context, _ int) {
			c.Redirect(http.StatusSeeOther, LOGIN_PATH)
		},
	})
	if err != nil {
		return err
	}

	art.JWT = mw
	return nil
}
