// Package domain defines the core types of the scan pipeline: analysis jobs
// and their lifecycle, engine status events, client toasts, and the persisted
// records (scans, appointments, messages) mapped with GORM.
package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// JobStatus is the lifecycle state of an analysis job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// ErrInvalidTransition is returned when a status change would move a job
// backwards or out of a terminal state.
var ErrInvalidTransition = errors.New("invalid job status transition")

// ParseJobStatus normalizes an engine-reported status. The engine reports
// freshly accepted work as "queued", which maps to JobPending.
func ParseJobStatus(s string) (JobStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "queued":
		return JobPending, true
	case "processing":
		return JobProcessing, true
	case "completed":
		return JobCompleted, true
	case "failed":
		return JobFailed, true
	}
	return "", false
}

// Valid reports whether s is one of the four known statuses.
func (s JobStatus) Valid() bool { return s.rank() > 0 }

// Terminal reports whether no further transition is allowed out of s.
func (s JobStatus) Terminal() bool { return s == JobCompleted || s == JobFailed }

func (s JobStatus) rank() int {
	switch s {
	case JobPending:
		return 1
	case JobProcessing:
		return 2
	case JobCompleted, JobFailed:
		return 3
	}
	return 0
}

// CanTransitionTo reports whether moving from s to next keeps the lifecycle
// monotonic. Forward skips (pending→completed) are allowed because an
// intermediate event can be lost across an upstream reconnect.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if !next.Valid() || s.Terminal() {
		return false
	}
	return next.rank() > s.rank()
}

// AnalysisJob tracks one submission to the analysis engine.
type AnalysisJob struct {
	ID          string          `json:"id"`
	SubmittedAt time.Time       `json:"submittedAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
	Status      JobStatus       `json:"status"`
	Progress    int             `json:"progress"`
	Message     string          `json:"message,omitempty"`
	PatientInfo json.RawMessage `json:"patientInfo,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Advance applies next to the job. Re-applying the current status is a no-op
// reported as changed=false; moves that break monotonicity return
// ErrInvalidTransition and leave the job untouched.
func (j *AnalysisJob) Advance(next JobStatus, message string, progress int, at time.Time) (changed bool, err error) {
	if next == j.Status {
		return false, nil
	}
	if !j.Status.CanTransitionTo(next) {
		return false, ErrInvalidTransition
	}
	j.Status = next
	j.Message = message
	if progress > j.Progress {
		j.Progress = progress
	}
	if next == JobCompleted {
		j.Progress = 100
	}
	if next == JobFailed {
		j.Error = message
	}
	j.UpdatedAt = at
	return true, nil
}
