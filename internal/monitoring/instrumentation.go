package monitoring

import (
	"strings"
	"time"
)

// RecordAuthAttempt increments the auth attempt counter.
func RecordAuthAttempt(result string) {
	module := ensureModule()
	if module == nil {
		return
	}
	label := normalizeLabel(result)
	module.metrics.authAttempts.WithLabelValues(label).Inc()
	module.stats.recordAuth(label)
}

// ObserveAPILatency captures the HTTP request latency for the supplied route.
func ObserveAPILatency(method, path, status string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "UNKNOWN"
	}
	path = sanitizePath(path)
	if path == "" {
		path = "unknown"
	}
	status = strings.TrimSpace(status)
	if status == "" {
		status = "unknown"
	}
	observeDuration(module.metrics.apiLatency.WithLabelValues(method, path, status), duration)
}

// RecordPushDelivery records one dispatcher call and its per-token counts.
func RecordPushDelivery(mode, result string, successCount, failureCount int, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	mode = normalizeLabel(mode)
	result = normalizeLabel(result)
	module.metrics.pushDeliveries.WithLabelValues(mode, result).Inc()
	if successCount > 0 {
		module.metrics.pushTokens.WithLabelValues("success").Add(float64(successCount))
	}
	if failureCount > 0 {
		module.metrics.pushTokens.WithLabelValues("failure").Add(float64(failureCount))
	}
	if result != "skipped" {
		observeDuration(module.metrics.pushLatency.WithLabelValues(mode), duration)
	}
	module.stats.recordDelivery(result, successCount, failureCount)
}

// RecordDeliveryFailure keeps the last gateway rejection for the summary.
func RecordDeliveryFailure(kind, reason, message string) {
	module := ensureModule()
	if module == nil {
		return
	}
	module.stats.recordDeliveryFailure(FailureRecord{
		Kind:     normalizeLabel(kind),
		Reason:   normalizeLabel(reason),
		Message:  strings.TrimSpace(message),
		Occurred: time.Now(),
	})
}

// RecordTransition counts a classified match transition.
func RecordTransition(kind string) {
	module := ensureModule()
	if module == nil {
		return
	}
	module.metrics.transitions.WithLabelValues(normalizeLabel(kind)).Inc()
}

// RecordReminder counts a reminder attempt for a window.
func RecordReminder(window, result string) {
	module := ensureModule()
	if module == nil {
		return
	}
	window = strings.ReplaceAll(normalizeLabel(window), " ", "_")
	module.metrics.reminders.WithLabelValues(window, normalizeLabel(result)).Inc()
}

// RecordMatchesCompleted adds to the completed matches counter.
func RecordMatchesCompleted(n int64) {
	module := ensureModule()
	if module == nil || n <= 0 {
		return
	}
	module.metrics.matchesCompleted.Add(float64(n))
}

// RecordNotificationsPurged adds to the purged records counter.
func RecordNotificationsPurged(n int64) {
	module := ensureModule()
	if module == nil || n <= 0 {
		return
	}
	module.metrics.notificationsPurged.Add(float64(n))
}

// RecordEventConsumed counts a change event by collection and handling result.
func RecordEventConsumed(collection, result string) {
	module := ensureModule()
	if module == nil {
		return
	}
	module.metrics.eventsConsumed.WithLabelValues(normalizeLabel(collection), normalizeLabel(result)).Inc()
}

// RecordMaintenanceRun records the completion of a sweep job.
func RecordMaintenanceRun(job, result, message string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	jobID := normalizeLabel(job)
	result = normalizeLabel(result)
	module.metrics.maintenanceRuns.WithLabelValues(jobID, result).Inc()
	observeDuration(module.metrics.maintenanceDuration.WithLabelValues(jobID), duration)
	if result == "success" {
		module.metrics.maintenanceLastRun.WithLabelValues(jobID).Set(float64(time.Now().Unix()))
	}
	module.stats.maintenanceEntry(jobID).record(result, strings.TrimSpace(message), duration)
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}

func sanitizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "/" {
		return "root"
	}
	path = strings.Trim(path, "/")
	return strings.ReplaceAll(path, " ", "_")
}
