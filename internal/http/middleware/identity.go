// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves who is calling. The pipeline has no accounts: a browser
// tab identifies itself with a session id (X-Session-ID header or the
// "session" query parameter, the latter because EventSource cannot set
// headers). Everything keyed per caller (rate limits, idempotency records,
// toast queues) uses ClientID.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderSessionID carries the caller's session id.
const HeaderSessionID = "X-Session-ID"

// QuerySessionID is the query-string fallback for HeaderSessionID.
const QuerySessionID = "session"

// maxSessionIDLen bounds ids accepted from clients.
const maxSessionIDLen = 128

// SessionID returns the session id supplied by the caller, if any.
func SessionID(c *gin.Context) string {
	if c == nil || c.Request == nil {
		return ""
	}
	id := strings.TrimSpace(c.GetHeader(HeaderSessionID))
	if id == "" {
		id = strings.TrimSpace(c.Query(QuerySessionID))
	}
	if len(id) > maxSessionIDLen {
		return ""
	}
	return id
}

// ClientID keys per-caller state: "session:<id>" when a session id was
// supplied, "ip:<addr>" otherwise.
func ClientID(c *gin.Context) string {
	if id := SessionID(c); id != "" {
		return "session:" + id
	}
	if c == nil || c.Request == nil {
		return "ip:unknown"
	}
	return "ip:" + c.ClientIP()
}
