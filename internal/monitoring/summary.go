package monitoring

import "time"

// Summary surfaces aggregated delivery and sweep state for operators.
type Summary struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Auth        AuthSummary        `json:"auth"`
	Delivery    DeliverySummary    `json:"delivery"`
	Maintenance MaintenanceSummary `json:"maintenance"`
}

type AuthSummary struct {
	Success uint64 `json:"success"`
	Failure uint64 `json:"failure"`
	Error   uint64 `json:"error"`
}

type FailureRecord struct {
	Kind     string    `json:"kind"`
	Reason   string    `json:"reason"`
	Message  string    `json:"message"`
	Occurred time.Time `json:"occurred_at"`
}

type DeliverySummary struct {
	Sent            uint64         `json:"sent"`
	Failed          uint64         `json:"failed"`
	Skipped         uint64         `json:"skipped"`
	TokensSucceeded uint64         `json:"tokens_succeeded"`
	TokensFailed    uint64         `json:"tokens_failed"`
	LastFailure     *FailureRecord `json:"last_failure,omitempty"`
}

type MaintenanceSummary struct {
	Jobs []MaintenanceJobSummary `json:"jobs"`
}

type MaintenanceJobSummary struct {
	Job                 string        `json:"job"`
	LastStatus          string        `json:"last_status"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastError           string        `json:"last_error,omitempty"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	ConsecutiveSuccess  uint64        `json:"consecutive_success"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	TotalRuns           uint64        `json:"total_runs"`
}

// Snapshot returns a point-in-time summary from the current module when configured.
func Snapshot() Summary {
	if module := ensureModule(); module != nil && module.stats != nil {
		return module.stats.summary()
	}
	return Summary{GeneratedAt: time.Now()}
}
