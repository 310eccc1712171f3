package monitoring

import (
	"sync"
	"sync/atomic"
	"time"
)

type statStore struct {
	authSuccess atomic.Uint64
	authFailure atomic.Uint64
	authError   atomic.Uint64

	deliveriesSent    atomic.Uint64
	deliveriesFailed  atomic.Uint64
	deliveriesSkipped atomic.Uint64
	tokensSucceeded   atomic.Uint64
	tokensFailed      atomic.Uint64
	lastFailure       atomic.Pointer[FailureRecord]

	maintenance sync.Map // string -> *maintenanceStats
}

func newStatStore() *statStore {
	return &statStore{}
}

func (s *statStore) summary() Summary {
	jobs := []MaintenanceJobSummary{}
	s.maintenance.Range(func(key, value any) bool {
		jobs = append(jobs, value.(*maintenanceStats).snapshot(key.(string)))
		return true
	})

	return Summary{
		GeneratedAt: time.Now(),
		Auth: AuthSummary{
			Success: s.authSuccess.Load(),
			Failure: s.authFailure.Load(),
			Error:   s.authError.Load(),
		},
		Delivery: DeliverySummary{
			Sent:            s.deliveriesSent.Load(),
			Failed:          s.deliveriesFailed.Load(),
			Skipped:         s.deliveriesSkipped.Load(),
			TokensSucceeded: s.tokensSucceeded.Load(),
			TokensFailed:    s.tokensFailed.Load(),
			LastFailure:     s.lastFailure.Load(),
		},
		Maintenance: MaintenanceSummary{Jobs: jobs},
	}
}

func (s *statStore) recordAuth(result string) {
	switch result {
	case "success":
		s.authSuccess.Add(1)
	case "failure":
		s.authFailure.Add(1)
	default:
		s.authError.Add(1)
	}
}

func (s *statStore) recordDelivery(result string, successCount, failureCount int) {
	switch result {
	case "sent":
		s.deliveriesSent.Add(1)
	case "skipped":
		s.deliveriesSkipped.Add(1)
	default:
		s.deliveriesFailed.Add(1)
	}
	if successCount > 0 {
		s.tokensSucceeded.Add(uint64(successCount))
	}
	if failureCount > 0 {
		s.tokensFailed.Add(uint64(failureCount))
	}
}

func (s *statStore) recordDeliveryFailure(record FailureRecord) {
	s.lastFailure.Store(&record)
}

func (s *statStore) maintenanceEntry(job string) *maintenanceStats {
	if value, ok := s.maintenance.Load(job); ok {
		return value.(*maintenanceStats)
	}
	actual, _ := s.maintenance.LoadOrStore(job, &maintenanceStats{})
	return actual.(*maintenanceStats)
}

type maintenanceStats struct {
	lastStatus           atomic.Value // string
	lastError            atomic.Value // string
	lastRun              atomic.Int64 // unix nano
	lastDuration         atomic.Int64 // nanoseconds
	consecutiveFailures  atomic.Uint64
	totalRuns            atomic.Uint64
	lastSuccessfulRun    atomic.Int64
	consecutiveSuccesses atomic.Uint64
}

func (m *maintenanceStats) snapshot(job string) MaintenanceJobSummary {
	status, _ := m.lastStatus.Load().(string)
	errMsg, _ := m.lastError.Load().(string)

	return MaintenanceJobSummary{
		Job:                 job,
		LastStatus:          status,
		LastRunAt:           time.Unix(0, m.lastRun.Load()),
		LastDuration:        time.Duration(m.lastDuration.Load()),
		LastError:           errMsg,
		ConsecutiveFailures: m.consecutiveFailures.Load(),
		ConsecutiveSuccess:  m.consecutiveSuccesses.Load(),
		LastSuccessAt:       time.Unix(0, m.lastSuccessfulRun.Load()),
		TotalRuns:           m.totalRuns.Load(),
	}
}

func (m *maintenanceStats) record(result, message string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	now := time.Now()
	m.lastStatus.Store(result)
	m.lastError.Store(message)
	m.lastRun.Store(now.UnixNano())
	m.lastDuration.Store(int64(duration))
	m.totalRuns.Add(1)

	switch result {
	case "skipped":
		return
	case "success":
		m.consecutiveFailures.Store(0)
		m.consecutiveSuccesses.Add(1)
		m.lastSuccessfulRun.Store(now.UnixNano())
		return
	}
	m.consecutiveFailures.Add(1)
	m.consecutiveSuccesses.Store(0)
}
