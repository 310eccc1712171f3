package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type collectors struct {
	authAttempts        *prometheus.CounterVec
	apiLatency          *prometheus.HistogramVec
	pushDeliveries      *prometheus.CounterVec
	pushTokens          *prometheus.CounterVec
	pushLatency         *prometheus.HistogramVec
	transitions         *prometheus.CounterVec
	reminders           *prometheus.CounterVec
	matchesCompleted    prometheus.Counter
	notificationsPurged prometheus.Counter
	eventsConsumed      *prometheus.CounterVec
	maintenanceRuns     *prometheus.CounterVec
	maintenanceDuration *prometheus.HistogramVec
	maintenanceLastRun  *prometheus.GaugeVec
}

func newCollectors(namespace string) *collectors {
	buckets := prometheus.DefBuckets
	sweepBuckets := []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600}

	return &collectors{
		authAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_attempts_total",
				Help:      "Bearer token validations on callable endpoints",
			},
			[]string{"result"},
		),
		apiLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_latency_seconds",
				Help:      "API endpoint latency",
				Buckets:   buckets,
			},
			[]string{"method", "path", "status"},
		),
		pushDeliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "push_deliveries_total",
				Help:      "Dispatcher calls by mode (single, multicast) and result (sent, failed, skipped)",
			},
			[]string{"mode", "result"},
		),
		pushTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "push_tokens_total",
				Help:      "Per-token delivery outcomes",
			},
			[]string{"result"},
		),
		pushLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "push_gateway_latency_seconds",
				Help:      "Push gateway call latency",
				Buckets:   buckets,
			},
			[]string{"mode"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "match_transitions_total",
				Help:      "Match transitions detected from change events",
			},
			[]string{"kind"},
		),
		reminders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "match_reminders_total",
				Help:      "Reminder attempts by window and result",
			},
			[]string{"window", "result"},
		),
		matchesCompleted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "matches_completed_total",
				Help:      "Matches moved to completed by the status sweep",
			},
		),
		notificationsPurged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_purged_total",
				Help:      "Notification records deleted by retention cleanup",
			},
		),
		eventsConsumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "change_events_total",
				Help:      "Record-store change events consumed by collection and result",
			},
			[]string{"collection", "result"},
		),
		maintenanceRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweep_runs_total",
				Help:      "Sweep job executions",
			},
			[]string{"job", "result"},
		),
		maintenanceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sweep_duration_seconds",
				Help:      "Sweep job duration",
				Buckets:   sweepBuckets,
			},
			[]string{"job"},
		),
		maintenanceLastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sweep_last_success_timestamp",
				Help:      "Timestamp of the last successful sweep run (seconds since epoch)",
			},
			[]string{"job"},
		),
	}
}

func (c *collectors) all() []prometheus.Collector {
	return []prometheus.Collector{
		c.authAttempts,
		c.apiLatency,
		c.pushDeliveries,
		c.pushTokens,
		c.pushLatency,
		c.transitions,
		c.reminders,
		c.matchesCompleted,
		c.notificationsPurged,
		c.eventsConsumed,
		c.maintenanceRuns,
		c.maintenanceDuration,
		c.maintenanceLastRun,
	}
}

func observeDuration(observer prometheus.Observer, d time.Duration) {
	if observer == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	observer.Observe(d.Seconds())
}
