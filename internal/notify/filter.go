package notify

import (
	"strings"

	"github.com/tbourn/scan-pipeline/internal/domain"
)

const (
	completePrefix = "Analysis Complete"
	failedPrefix   = "Analysis Failed"
)

// ToastFor maps a job status event to the toast a client should see.
// Only terminal events produce one; ok is false otherwise.
func ToastFor(evt domain.NotificationEvent) (message string, severity domain.Severity, ok bool) {
	switch evt.Status {
	case domain.JobCompleted:
		return withPrefix(completePrefix, evt.Message), domain.SeveritySuccess, true
	case domain.JobFailed:
		return withPrefix(failedPrefix, evt.Message), domain.SeverityError, true
	}
	return "", "", false
}

// withPrefix renders "<prefix>: <msg>", without repeating a prefix the
// engine already included.
func withPrefix(prefix, msg string) string {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return prefix
	}
	if strings.HasPrefix(strings.ToLower(msg), strings.ToLower(prefix)) {
		return msg
	}
	return prefix + ": " + msg
}
