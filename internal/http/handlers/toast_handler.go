// Toast HTTP handlers.
//
// A session's toast queue lives as long as the session has an open event
// stream. These endpoints read it, add client-side notices to it, and
// dismiss toasts:
//   - GET    /sessions/{sid}/toasts
//   - POST   /sessions/{sid}/toasts
//   - DELETE /sessions/{sid}/toasts/{toastId}
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/scan-pipeline/internal/domain"
	"github.com/tbourn/scan-pipeline/internal/notify"
)

// CreateToastRequest is the payload for a client-raised toast.
type CreateToastRequest struct {
	Message    string          `json:"message" binding:"required" example:"Upload started"`
	Severity   domain.Severity `json:"severity" binding:"required" example:"info"`
	DurationMs int64           `json:"durationMs" example:"5000"`
}

// CreateToastResponse carries the new toast id.
type CreateToastResponse struct {
	ID string `json:"id"`
}

// ListToastsResponse lists a session's visible toasts, oldest first.
type ListToastsResponse struct {
	Toasts []domain.Toast `json:"toasts"`
}

// ListToasts godoc
// @ID          listToasts
// @Summary     List visible toasts of a session
// @Description Sessions without an open event stream have no toasts.
// @Tags        Toasts
// @Produce     json
// @Param       sid  path  string  true  "Session ID"
// @Success     200  {object}  handlers.ListToastsResponse
// @Router      /sessions/{sid}/toasts [get]
func (h *Handlers) ListToasts(c *gin.Context) {
	out := ListToastsResponse{Toasts: []domain.Toast{}}
	if s, err := h.sessions.Get(c.Param("sid")); err == nil {
		out.Toasts = s.Queue.List()
	}
	ok(c, http.StatusOK, out)
}

// CreateToast godoc
// @ID          createToast
// @Summary     Show a toast to a session
// @Tags        Toasts
// @Accept      json
// @Produce     json
// @Param       sid   path  string                       true  "Session ID"
// @Param       body  body  handlers.CreateToastRequest  true  "Toast"
// @Success     201  {object}  handlers.CreateToastResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid message or severity"
// @Failure     404  {object}  handlers.ErrorResponse  "Session has no open stream"
// @Router      /sessions/{sid}/toasts [post]
func (h *Handlers) CreateToast(c *gin.Context) {
	var req CreateToastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message and severity are required")
		return
	}
	s, err := h.sessions.Get(c.Param("sid"))
	if err != nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
		return
	}
	id, err := s.Queue.Enqueue(req.Message, req.Severity, time.Duration(req.DurationMs)*time.Millisecond)
	switch {
	case errors.Is(err, notify.ErrInvalidSeverity), errors.Is(err, notify.ErrEmptyMessage):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	case errors.Is(err, notify.ErrQueueClosed):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
		return
	case err != nil:
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusCreated, CreateToastResponse{ID: id})
}

// DismissToast godoc
// @ID          dismissToast
// @Summary     Dismiss a toast
// @Description Always 204: dismissing an unknown or already expired toast is a no-op.
// @Tags        Toasts
// @Param       sid      path  string  true  "Session ID"
// @Param       toastId  path  string  true  "Toast ID"
// @Success     204
// @Router      /sessions/{sid}/toasts/{toastId} [delete]
func (h *Handlers) DismissToast(c *gin.Context) {
	h.sessions.Dismiss(c.Param("sid"), c.Param("toastId"))
	noContent(c)
}
