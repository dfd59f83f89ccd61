// Event stream handler.
//
// GET /events keeps a server-sent event stream open per browser tab. It
// emits:
//   - connected        once, with the session id the client should reuse
//   - status           every job event relayed by the broadcast hub
//   - toast            a toast added to the session's queue
//   - toast_dismissed  a toast removed (manually or on expiry)
//   - heartbeat        periodically, so proxies keep the connection open
//
// Toasts belong to the session, not the stream: two tabs sharing a session
// id see the same toasts, and each job event produces at most one toast.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/scan-pipeline/internal/http/middleware"
	"github.com/tbourn/scan-pipeline/internal/notify"
)

// Events godoc
// @ID          events
// @Summary     Subscribe to job and toast events
// @Description Server-sent events: connected, status, toast, toast_dismissed, heartbeat.
// @Tags        Events
// @Produce     text/event-stream
// @Param       X-Session-ID  header  string  false  "Session id; generated when absent"
// @Param       session       query   string  false  "Session id (for EventSource clients)"
// @Success     200
// @Router      /events [get]
func (h *Handlers) Events(c *gin.Context) {
	sid := middleware.SessionID(c)
	if sid == "" {
		sid = uuid.NewString()
	}
	log := middleware.LoggerFrom(c).With().Str("session", sid).Logger()

	sess, release := h.sessions.Acquire(sid)
	defer release()
	sub := h.hub.Subscribe()
	defer sub.Close()
	changes, stop := sess.Watch()
	defer stop()

	// The server's WriteTimeout would otherwise cut the stream.
	if err := http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{}); err != nil {
		log.Debug().Err(err).Msg("write deadline not cleared")
	}

	hdr := c.Writer.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.SSEvent("connected", gin.H{"sessionId": sid})
	for _, t := range sess.Queue.List() {
		c.SSEvent("toast", t)
	}
	c.Writer.Flush()
	log.Debug().Msg("event stream opened")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("event stream closed by client")
			return
		case evt, open := <-sub.Events():
			if !open {
				// Fell behind or the hub shut down; EventSource reconnects.
				log.Info().Msg("event stream dropped")
				return
			}
			c.SSEvent("status", evt)
		case ch, open := <-changes:
			if !open {
				return
			}
			switch ch.Kind {
			case notify.ToastAdded:
				c.SSEvent("toast", ch.Toast)
			case notify.ToastRemoved:
				c.SSEvent("toast_dismissed", gin.H{"id": ch.Toast.ID, "reason": ch.Reason})
			}
		case now := <-ticker.C:
			c.SSEvent("heartbeat", gin.H{"time": now.UTC()})
		}
		c.Writer.Flush()
	}
}
