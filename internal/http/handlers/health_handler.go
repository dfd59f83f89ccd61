package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthResponse reports process or dependency status.
type HealthResponse struct {
	Status string `json:"status" example:"ok"`
	// Subscribers is the number of open event streams.
	Subscribers int `json:"subscribers"`
}

// Health godoc
// @ID       health
// @Summary  Liveness probe
// @Tags     Health
// @Produce  json
// @Success  200  {object}  handlers.HealthResponse
// @Router   /health [get]
func (h *Handlers) Health(c *gin.Context) {
	resp := HealthResponse{Status: "ok"}
	if h.hub != nil {
		resp.Subscribers = h.hub.Len()
	}
	ok(c, http.StatusOK, resp)
}

// Ready godoc
// @ID          ready
// @Summary     Readiness probe
// @Description Ready once the upstream event stream of the analysis engine is connected.
// @Tags        Health
// @Produce     json
// @Success     200  {object}  handlers.HealthResponse
// @Failure     503  {object}  handlers.ErrorResponse
// @Router      /ready [get]
func (h *Handlers) Ready(c *gin.Context) {
	if h.hub == nil || !h.hub.Connected() {
		fail(c, http.StatusServiceUnavailable, ErrCodeNotReady, "analysis engine event stream is not connected")
		return
	}
	ok(c, http.StatusOK, HealthResponse{Status: "ready", Subscribers: h.hub.Len()})
}
