package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/scan-pipeline/internal/domain"
	"github.com/tbourn/scan-pipeline/internal/http/middleware"
	"github.com/tbourn/scan-pipeline/internal/utils"
)

// maxListLimit caps the "limit" query parameter on list endpoints.
const maxListLimit = 500

func listLimit(c *gin.Context) int {
	return utils.ClampLimit(c.Query("limit"), maxListLimit)
}

// notModified sets a weak ETag for a list response over coll and reports
// whether the client's If-None-Match already matches it. The tag covers the
// collection version and the raw query, so different filters never share a
// tag. Version failures skip the ETag and let the list proceed.
func (h *Handlers) notModified(c *gin.Context, coll domain.Collection) bool {
	v, err := h.records.Version(c.Request.Context(), coll)
	if err != nil {
		return false
	}
	sum := sha256.Sum256([]byte(v + "?" + c.Request.URL.RawQuery))
	etag := `W/"` + hex.EncodeToString(sum[:12]) + `"`
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

// replayed looks up a previous create under the request's Idempotency-Key.
// It returns the stored record id and response status when one exists; a
// replay answers with the same status as the original create.
func (h *Handlers) replayed(c *gin.Context, coll domain.Collection) (string, int, bool) {
	if h.idem == nil {
		return "", 0, false
	}
	key, okKey := middleware.GetIdempotencyKey(c)
	if !okKey {
		return "", 0, false
	}
	id, status, found, err := h.idem.Lookup(c.Request.Context(), middleware.ClientID(c), string(coll), key, time.Now().UTC())
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("idempotency lookup failed")
		return "", 0, false
	}
	if !found {
		return "", 0, false
	}
	if status == 0 {
		status = http.StatusOK
	}
	return id, status, true
}

// remember records the outcome of a keyed create. Failures are logged only:
// the record already exists and the client gets its answer either way.
func (h *Handlers) remember(c *gin.Context, coll domain.Collection, recordID string, status int) {
	if h.idem == nil {
		return
	}
	key, okKey := middleware.GetIdempotencyKey(c)
	if !okKey {
		return
	}
	if err := h.idem.Save(c.Request.Context(), middleware.ClientID(c), string(coll), key, recordID, status); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Str("record_id", recordID).Msg("idempotency save failed")
	}
}

func markReplayed(c *gin.Context) {
	c.Header(middleware.HeaderIdempotencyReplayed, "true")
}
