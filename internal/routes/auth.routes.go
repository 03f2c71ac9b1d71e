package routes

import (
	"github.com/gin-gonic/gin"

	"guardians/internal/controllers"
)

// RegisterAuthRoutes registers WebSocket and token status routes.
// Token generation is done via CLI only (no HTTP endpoint).
func RegisterAuthRoutes(r *gin.Engine, ctl *controllers.Controller) {
	r.GET("/ws", ctl.HandleWebSocket)
	r.GET("/auth/status", ctl.HandleTokenStatus)
}
