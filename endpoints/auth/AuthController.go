package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"git.sr.ht/~aondrejcak/policy-console/kernel"
)

// RegisterController mounts the operator login. Without a configured JWT
// secret the console is open and /login only redirects to it.
func RegisterController(r *gin.Engine, art *kernel.AppRuntime) {
	if art.JWT == nil {
		r.GET(kernel.LOGIN_PATH, func(c *gin.Context) {
			c.Redirect(http.StatusFound, kernel.HOME_PATH)
		})
		return
	}

	r.GET(kernel.LOGIN_PATH, LoginPage)
	r.POST(kernel.LOGIN_PATH, art.JWT.LoginHandler)
	r.POST("/logout", art.JWT.LogoutHandler)
}

func LoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", gin.H{"Title": "🔐 Operator Login"})
}
