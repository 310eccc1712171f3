package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/courtnotify/internal/handlers"
)

func registerNotificationRoutes(api *gin.RouterGroup, handler *handlers.NotificationHandler, limiter gin.HandlerFunc) {
	group := api.Group("/notifications")
	{
		group.POST("/custom", limiter, handler.SendCustom)
	}
}
