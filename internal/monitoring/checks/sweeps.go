package checks

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/charlesng35/courtnotify/internal/monitoring"
)

const defaultSweepMaxAge = 26 * time.Hour

// Sweeps reports down while any sweep job keeps failing and degraded when a job
// has not run within maxAge. The default covers the daily retention sweep.
func Sweeps(maxAge time.Duration) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultSweepMaxAge
	}

	return monitoring.NewCheck("sweeps", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		summary := monitoring.Snapshot()
		now := time.Now()

		if len(summary.Maintenance.Jobs) == 0 {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusUp,
				Details:  "no sweep has run yet",
				Duration: time.Since(start),
			}
		}

		status := monitoring.StatusUp
		var problems []string

		for _, job := range summary.Maintenance.Jobs {
			if job.ConsecutiveFailures > 0 {
				status = worstStatus(status, monitoring.StatusDown)
				problems = append(problems, job.Job+": "+strconv.FormatUint(job.ConsecutiveFailures, 10)+" consecutive failures")
			}

			if maxAge > 0 && !job.LastRunAt.IsZero() && now.Sub(job.LastRunAt) > maxAge {
				status = worstStatus(status, monitoring.StatusDegraded)
				problems = append(problems, job.Job+": stale run "+job.LastRunAt.UTC().Format(time.RFC3339))
			}
		}

		return monitoring.ProbeResult{
			Status:   status,
			Details:  strings.Join(problems, "; "),
			Duration: time.Since(start),
		}
	})
}

func worstStatus(current, candidate monitoring.ProbeStatus) monitoring.ProbeStatus {
	if current == monitoring.StatusDown || candidate == monitoring.StatusDown {
		return monitoring.StatusDown
	}
	if current == monitoring.StatusDegraded || candidate == monitoring.StatusDegraded {
		return monitoring.StatusDegraded
	}
	return monitoring.StatusUp
}
