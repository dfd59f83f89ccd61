// Analysis HTTP handlers.
//
// This file exposes job submission and status:
//   - POST /analyze        (multipart upload → job handle)
//   - GET  /analyze/{id}   (tracked job lifecycle)
//
// Submission never waits for the analysis; progress arrives on the event
// stream (see events_handler.go).
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/scan-pipeline/internal/services"
)

// AnalyzeResponse is the receipt for an accepted submission.
type AnalyzeResponse struct {
	Success bool `json:"success" example:"true"`
	// JobID identifies the job on the event stream and in GET /analyze/{id}.
	JobID string `json:"jobId" example:"5b1f0c7e-2d7a-4c56-9d0e-8f4b7f1f2a10"`
	// PatientInfo echoes the submitted metadata, or null.
	PatientInfo json.RawMessage `json:"patientInfo" swaggertype:"object"`
}

// Analyze godoc
// @ID          analyzeScan
// @Summary     Submit a scan for analysis
// @Description Forwards the uploaded file (and optional patient metadata) to the analysis engine
// @Description and returns the job id immediately. Status changes are pushed on GET /events.
// @Tags        Analysis
// @Accept      multipart/form-data
// @Produce     json
//
// @Param       file         formData  file    true   "Scan image"
// @Param       patientInfo  formData  string  false  "Patient metadata as JSON"
//
// @Success     200  {object}  handlers.AnalyzeResponse
// @Failure     400  {object}  handlers.ErrorResponse  "No file, or invalid patientInfo"
// @Failure     413  {object}  handlers.ErrorResponse  "Upload too large"
// @Failure     503  {object}  handlers.ErrorResponse  "Analysis engine unavailable"
// @Failure     502  {object}  handlers.ErrorResponse  "Analysis engine error"
// @Router      /analyze [post]
func (h *Handlers) Analyze(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "uploaded file is too large")
			return
		}
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "no file uploaded")
		return
	}
	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "could not read uploaded file")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "could not read uploaded file")
		return
	}

	up := services.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}
	handle, err := h.gw.Submit(c.Request.Context(), up, c.PostForm("patientInfo"))
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, AnalyzeResponse{Success: true, JobID: handle.JobID, PatientInfo: handle.PatientInfo})
}

// JobStatus godoc
// @ID          getJob
// @Summary     Get an analysis job
// @Tags        Analysis
// @Produce     json
// @Param       id   path      string  true  "Job ID"
// @Success     200  {object}  domain.AnalysisJob
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown job"
// @Failure     503  {object}  handlers.ErrorResponse  "Analysis engine unavailable"
// @Router      /analyze/{id} [get]
func (h *Handlers) JobStatus(c *gin.Context) {
	job, err := h.gw.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, job)
}
