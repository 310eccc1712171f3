package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/courtnotify/internal/app"
	iauth "github.com/charlesng35/courtnotify/internal/auth"
	"github.com/charlesng35/courtnotify/internal/handlers"
	"github.com/charlesng35/courtnotify/internal/middleware"
	"github.com/charlesng35/courtnotify/internal/monitoring"
)

// Dependencies are the collaborators the HTTP surface needs.
type Dependencies struct {
	Config        *app.Config
	JWT           *iauth.JWTService
	Notifications handlers.CustomNotificationSender
	RateStore     middleware.RateStore
	Monitoring    *monitoring.Module
}

// NewRouter builds the Gin engine, wires middleware and registers the routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	switch {
	case deps.Config == nil:
		return nil, errors.New("config must be provided")
	case deps.JWT == nil:
		return nil, errors.New("jwt service must be provided")
	case deps.Notifications == nil:
		return nil, errors.New("notification sender must be provided")
	}
	if deps.RateStore == nil {
		deps.RateStore = middleware.NewMemoryRateStore()
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())

	registerHealthRoutes(r, deps.Config, deps.Monitoring)
	registerMetricsRoute(r, deps.Config, deps.Monitoring)

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT))

	notificationHandler, err := handlers.NewNotificationHandler(deps.Notifications)
	if err != nil {
		return nil, err
	}
	limit := deps.Config.Server.RateLimit
	registerNotificationRoutes(api, notificationHandler, middleware.RateLimit(deps.RateStore, limit.Requests, limit.Window))

	registerMonitoringRoutes(api, handlers.NewMonitoringHandler(deps.Monitoring, deps.Config))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

func registerMetricsRoute(r *gin.Engine, cfg *app.Config, mon *monitoring.Module) {
	if mon == nil || !cfg.Monitoring.Prometheus.Enabled {
		return
	}
	endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
	if endpoint == "" {
		endpoint = "/metrics"
	}
	r.GET(endpoint, gin.WrapH(mon.Handler()))
}
