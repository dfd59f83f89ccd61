package domain

import (
	"encoding/json"
	"time"
)

// Severity classifies a toast for presentation.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeveritySuccess, SeverityError, SeverityWarning, SeverityInfo:
		return true
	}
	return false
}

// DefaultToastDuration is how long a toast stays visible unless told otherwise.
const DefaultToastDuration = 5 * time.Second

// Toast is a transient, time-bounded client notification.
type Toast struct {
	ID        string        `json:"id"`
	Message   string        `json:"message"`
	Severity  Severity      `json:"severity"`
	CreatedAt time.Time     `json:"createdAt"`
	Duration  time.Duration `json:"-"`
}

// MarshalJSON renders Duration as durationMs, the unit the UI works in.
func (t Toast) MarshalJSON() ([]byte, error) {
	type alias Toast
	return json.Marshal(struct {
		alias
		DurationMs int64 `json:"durationMs"`
	}{alias(t), t.Duration.Milliseconds()})
}
