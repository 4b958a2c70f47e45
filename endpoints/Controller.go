package endpoints

import (
	"github.com/gin-gonic/gin"
)

// RegisterController mounts the chat, search and statistics pages. chatGuard
// runs in front of POST /chat only.
func RegisterController(rg *gin.RouterGroup, chatGuard gin.HandlerFunc) {
	rg.GET("/", Index)
	rg.GET("/chat", ChatPage)
	rg.POST("/chat", chatGuard, ChatSend)
	rg.GET("/search", Search)
	rg.GET("/stats", Stats)
}
