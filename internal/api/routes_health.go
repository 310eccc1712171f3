package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/courtnotify/internal/app"
	"github.com/charlesng35/courtnotify/internal/handlers"
	"github.com/charlesng35/courtnotify/internal/monitoring"
)

func registerHealthRoutes(r *gin.Engine, cfg *app.Config, mon *monitoring.Module) {
	var handler *handlers.HealthHandler
	if cfg.Monitoring.Health.Enabled && mon != nil {
		handler = handlers.NewHealthHandler(mon.Health())
	}

	registerHealthEndpoints(r, handler)
	registerHealthEndpoints(r.Group("/api"), handler)
}

func registerHealthEndpoints(router gin.IRouter, handler *handlers.HealthHandler) {
	if handler == nil {
		router.GET("/health", handlers.HealthDisabled)
		router.GET("/health/live", handlers.HealthDisabled)
		router.GET("/health/ready", handlers.HealthDisabled)
		return
	}

	router.GET("/health", handler.Status)
	router.GET("/health/live", handler.Live)
	router.GET("/health/ready", handler.Ready)
}
