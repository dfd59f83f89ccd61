// Package handlers provides the HTTP handlers of the scan pipeline API.
//
// This file defines the error envelope and the helpers every handler uses
// to write responses, including failFromErr, the single place where service
// errors become HTTP statuses.
//
// Example error response:
//
//	HTTP/1.1 503 Service Unavailable
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "service_unavailable",
//	  "message": "analysis engine is unavailable, please retry shortly",
//	  "error": "analysis engine is unavailable, please retry shortly"
//	}
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/scan-pipeline/internal/http/middleware"
	"github.com/tbourn/scan-pipeline/internal/services"
)

// StatusClientClosedRequest is recorded when the client disconnects before
// the response is written (nginx convention).
const StatusClientClosedRequest = 499

// ErrorResponse is the error envelope returned by all endpoints. Error
// repeats Message for clients that only read an "error" field.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"resource not found"`
	Error   string `json:"error" example:"resource not found"`
}

// fail aborts with an ErrorResponse. 5xx responses are logged with the
// request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
		Error:     msg,
	})
}

// Fail is the exported variant of fail for the router's fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failFromErr maps a service error onto the HTTP taxonomy. Unknown errors
// become a generic 500 and their detail only reaches the log.
func failFromErr(c *gin.Context, err error) {
	var (
		ve *services.ValidationError
		ue *services.UpstreamError
	)
	switch {
	case errors.Is(err, context.Canceled) && c.Request.Context().Err() != nil:
		// The client hung up; nobody reads the body.
		middleware.LoggerFrom(c).Debug().Err(err).Msg("request canceled by client")
		c.AbortWithStatus(StatusClientClosedRequest)
	case errors.As(err, &ve):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, ve.Error())
	case errors.Is(err, services.ErrValidation):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrServiceUnavailable):
		fail(c, http.StatusServiceUnavailable, ErrCodeServiceUnavailable,
			"analysis engine is unavailable, please retry shortly")
	case errors.Is(err, services.ErrNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "resource not found")
	case errors.Is(err, services.ErrConflict):
		fail(c, http.StatusConflict, ErrCodeConflict, "resource already exists")
	case errors.As(err, &ue):
		status := ue.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		fail(c, status, ErrCodeUpstream, ue.Message)
	default:
		middleware.LoggerFrom(c).Error().Err(err).Msg("unhandled service error")
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
	}
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
