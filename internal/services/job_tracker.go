// Package services – JobTracker
//
// JobTracker keeps the in-memory lifecycle of every job submitted through
// this process. Engine events advance it monotonically; terminal jobs are
// swept after a retention window by a cron entry.
package services

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/tbourn/scan-pipeline/internal/domain"
)

// JobTracker is safe for concurrent use.
type JobTracker struct {
	mu   sync.RWMutex
	jobs map[string]*domain.AnalysisJob
	now  func() time.Time
}

// NewJobTracker returns an empty tracker.
func NewJobTracker() *JobTracker {
	return &JobTracker{jobs: make(map[string]*domain.AnalysisJob), now: time.Now}
}

// Register records a freshly submitted job as pending. Registering an id
// that is already tracked keeps the existing entry.
func (t *JobTracker) Register(id string, patientInfo json.RawMessage, at time.Time) domain.AnalysisJob {
	t.mu.Lock()
	defer t.mu.Unlock()
	if j, ok := t.jobs[id]; ok {
		return *j
	}
	j := &domain.AnalysisJob{
		ID:          id,
		SubmittedAt: at,
		UpdatedAt:   at,
		Status:      domain.JobPending,
		PatientInfo: patientInfo,
	}
	t.jobs[id] = j
	return *j
}

// Apply advances the tracked job with evt. Events for jobs this process did
// not submit start a new entry so status lookups still work. It reports
// whether the job changed; out-of-order events are ignored.
func (t *JobTracker) Apply(evt domain.NotificationEvent) (domain.AnalysisJob, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[evt.JobID]
	if !ok {
		j = &domain.AnalysisJob{ID: evt.JobID, SubmittedAt: evt.Timestamp, UpdatedAt: evt.Timestamp}
		t.jobs[evt.JobID] = j
	}
	changed, err := j.Advance(evt.Status, evt.Message, evt.Progress, evt.Timestamp)
	if errors.Is(err, domain.ErrInvalidTransition) {
		return *j, false
	}
	return *j, changed
}

// SetResult attaches the engine's analysis payload to a tracked job.
func (t *JobTracker) SetResult(id string, result json.RawMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if j, ok := t.jobs[id]; ok {
		j.Result = result
	}
}

// Get returns a copy of the tracked job.
func (t *JobTracker) Get(id string) (domain.AnalysisJob, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	j, ok := t.jobs[id]
	if !ok {
		return domain.AnalysisJob{}, false
	}
	return *j, true
}

// Len reports how many jobs are tracked.
func (t *JobTracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.jobs)
}

// Sweep forgets terminal jobs last updated before cutoff and returns how
// many were removed. Live jobs are never swept.
func (t *JobTracker) Sweep(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for id, j := range t.jobs {
		if j.Status.Terminal() && j.UpdatedAt.Before(cutoff) {
			delete(t.jobs, id)
			n++
		}
	}
	return n
}

// ScheduleJobSweep registers a cron entry on c that sweeps terminal jobs
// older than retention.
func ScheduleJobSweep(c *cron.Cron, t *JobTracker, retention time.Duration, spec string, log zerolog.Logger) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		if n := t.Sweep(t.now().Add(-retention)); n > 0 {
			log.Info().Int("removed", n).Str("component", "jobs").Msg("swept finished jobs")
		}
	})
}
