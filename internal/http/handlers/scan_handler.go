// Scan HTTP handlers.
//
//   - GET  /scans        (newest first; filters status, severity, limit)
//   - POST /scans        (record a scan; Idempotency-Key aware)
//   - PUT  /scans/{id}   (merge a partial update)
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/scan-pipeline/internal/domain"
	"github.com/tbourn/scan-pipeline/internal/services"
)

// CreateScanRequest is the payload for POST /scans. Field names follow the
// dashboard's scan cards.
type CreateScanRequest struct {
	ID          string          `json:"id"`
	PatientName string          `json:"name" example:"Jane Roe"`
	Age         string          `json:"age"`
	Contact     string          `json:"contact"`
	Email       string          `json:"email"`
	Address     string          `json:"address"`
	ScanType    string          `json:"scanType" example:"CT Liver"`
	Status      string          `json:"status" example:"Anomaly Detected"`
	Severity    string          `json:"severity" example:"High"`
	Confidence  int             `json:"confidence" example:"87"`
	Findings    string          `json:"findings"`
	Result      json.RawMessage `json:"analysisResult" swaggertype:"object"`
}

// UpdateScanRequest is the payload for PUT /scans/{id}; absent fields are
// left unchanged.
type UpdateScanRequest struct {
	Status     *string `json:"status"`
	Severity   *string `json:"severity"`
	Findings   *string `json:"findings"`
	ScanType   *string `json:"scanType"`
	Confidence *int    `json:"confidence"`
}

// ScanResponse wraps one scan.
type ScanResponse struct {
	Success bool         `json:"success"`
	Scan    *domain.Scan `json:"scan"`
}

// ListScans godoc
// @ID          listScans
// @Summary     List scans
// @Description Returns scans newest first as a bare array. Supports ETag / If-None-Match.
// @Tags        Scans
// @Produce     json
// @Param       status    query  string  false  "Filter by status"
// @Param       severity  query  string  false  "Filter by severity"
// @Param       limit     query  int     false  "Maximum number of scans"  maximum(500)
// @Success     200  {array}   domain.Scan
// @Success     304  "Not modified"
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /scans [get]
func (h *Handlers) ListScans(c *gin.Context) {
	if h.notModified(c, domain.CollectionScans) {
		return
	}
	items, err := h.records.ListScans(c.Request.Context(), services.ScanFilter{
		Status:   c.Query("status"),
		Severity: c.Query("severity"),
		Limit:    listLimit(c),
	})
	if err != nil {
		failFromErr(c, err)
		return
	}
	if items == nil {
		items = []domain.Scan{}
	}
	ok(c, http.StatusOK, items)
}

// CreateScan godoc
// @ID          createScan
// @Summary     Record a scan
// @Tags        Scans
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string                      false  "Key for safe retries"
// @Param       body             body    handlers.CreateScanRequest  true   "Scan"
// @Success     201  {object}  handlers.ScanResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "Id already used"
// @Router      /scans [post]
func (h *Handlers) CreateScan(c *gin.Context) {
	ctx := c.Request.Context()
	if id, status, found := h.replayed(c, domain.CollectionScans); found {
		if prev, err := h.records.GetScan(ctx, id); err == nil {
			markReplayed(c)
			ok(c, status, ScanResponse{Success: true, Scan: prev})
			return
		}
	}

	var req CreateScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid scan payload")
		return
	}
	s, err := h.records.CreateScan(ctx, domain.Scan{
		ID:          req.ID,
		PatientName: req.PatientName,
		Age:         req.Age,
		Contact:     req.Contact,
		Email:       req.Email,
		Address:     req.Address,
		ScanType:    req.ScanType,
		Status:      req.Status,
		Severity:    req.Severity,
		Confidence:  req.Confidence,
		Findings:    req.Findings,
		Result:      req.Result,
	})
	if err != nil {
		failFromErr(c, err)
		return
	}
	h.remember(c, domain.CollectionScans, s.ID, http.StatusCreated)
	ok(c, http.StatusCreated, ScanResponse{Success: true, Scan: s})
}

// UpdateScan godoc
// @ID          updateScan
// @Summary     Update a scan
// @Tags        Scans
// @Accept      json
// @Produce     json
// @Param       id    path  string                      true  "Scan ID"
// @Param       body  body  handlers.UpdateScanRequest  true  "Fields to change"
// @Success     200  {object}  handlers.ScanResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /scans/{id} [put]
func (h *Handlers) UpdateScan(c *gin.Context) {
	var req UpdateScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid scan patch")
		return
	}
	s, err := h.records.UpdateScan(c.Request.Context(), c.Param("id"), services.ScanPatch{
		Status:     req.Status,
		Severity:   req.Severity,
		Findings:   req.Findings,
		ScanType:   req.ScanType,
		Confidence: req.Confidence,
	})
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "scan not found")
			return
		}
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, ScanResponse{Success: true, Scan: s})
}
