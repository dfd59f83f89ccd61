package domain

import "time"

// NotificationEvent is one job-status message produced by the analysis engine
// and relayed to every subscriber. ID and Timestamp are stamped on receipt
// when the engine leaves them empty.
type NotificationEvent struct {
	ID        string    `json:"id"`
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	Message   string    `json:"message"`
	Progress  int       `json:"progress,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
