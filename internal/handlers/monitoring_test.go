package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/courtnotify/internal/app"
	"github.com/charlesng35/courtnotify/internal/monitoring"
)

func TestMonitoringHandlerSummary(t *testing.T) {
	mod, err := monitoring.NewModule(monitoring.Options{DisableRuntimeCollectors: true})
	require.NoError(t, err)
	monitoring.SetModule(mod)

	monitoring.RecordPushDelivery("multicast", "success", 2, 0, 30*time.Millisecond)
	monitoring.RecordMaintenanceRun("reminders", "success", "", 200*time.Millisecond)

	cfg := &app.Config{
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true},
			Health:     app.HealthConfig{Enabled: true},
		},
	}
	handler := NewMonitoringHandler(mod, cfg)
	require.NotNil(t, handler)

	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/api/monitoring/summary", nil)

	handler.Summary(ctx)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), `"endpoint":"/metrics"`)
	require.Contains(t, recorder.Body.String(), `"job":"reminders"`)
}

func TestMonitoringHandlerDisabled(t *testing.T) {
	mod, err := monitoring.NewModule(monitoring.Options{DisableRuntimeCollectors: true})
	require.NoError(t, err)

	require.Nil(t, NewMonitoringHandler(mod, &app.Config{}))
	require.Nil(t, NewMonitoringHandler(nil, &app.Config{}))
}

func TestHealthHandlerReports(t *testing.T) {
	manager := monitoring.NewHealthManager()
	manager.RegisterLiveness(monitoring.NewCheck("process", func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	manager.RegisterReadiness(monitoring.NewCheck("database", func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "connection refused"}
	}))

	handler := NewHealthHandler(manager)
	require.NotNil(t, handler)

	serve := func(fn gin.HandlerFunc) (*httptest.ResponseRecorder, map[string]any) {
		recorder := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(recorder)
		c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)
		fn(c)
		var body map[string]any
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
		return recorder, body
	}

	recorder, body := serve(handler.Live)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, true, body["success"])

	recorder, body = serve(handler.Ready)
	require.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	require.Contains(t, body, "checks")

	recorder, body = serve(handler.Status)
	require.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	require.NotContains(t, body, "checks")

	recorder, body = serve(HealthDisabled)
	require.Equal(t, http.StatusNotFound, recorder.Code)
	require.Equal(t, "disabled", body["status"])

	require.Nil(t, NewHealthHandler(nil))
}
