// Package services – Gateway
//
// Gateway accepts scan uploads, hands them to the analysis engine and tracks
// the resulting job. Engine failures are translated into service errors:
// an unreachable engine becomes ErrServiceUnavailable, a non-2xx answer
// becomes *UpstreamError with the engine's status and message.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/scan-pipeline/internal/domain"
	"github.com/tbourn/scan-pipeline/internal/engine"
)

// Upload is a scan file received from a client.
type Upload = engine.Upload

// Engine is the subset of the analysis engine client the services use.
type Engine interface {
	Submit(ctx context.Context, up engine.Upload, patientInfo []byte) (string, error)
	Status(ctx context.Context, id string) (*engine.Status, error)
}

// JobHandle is the client's receipt for a submission.
type JobHandle struct {
	JobID       string          `json:"jobId"`
	PatientInfo json.RawMessage `json:"patientInfo"`
	SubmittedAt time.Time       `json:"submittedAt"`
}

// Gateway submits jobs to the engine.
type Gateway struct {
	Engine  Engine
	Jobs    *JobTracker
	Timeout time.Duration
	Now     func() time.Time
}

// NewGateway wires a Gateway.
func NewGateway(e Engine, jobs *JobTracker, timeout time.Duration) *Gateway {
	return &Gateway{Engine: e, Jobs: jobs, Timeout: timeout, Now: time.Now}
}

var jsonNull = json.RawMessage("null")

// normalizePatientInfo compacts submitted metadata. Empty input yields JSON
// null; anything else must be valid JSON and is echoed back as submitted.
func normalizePatientInfo(raw string) (json.RawMessage, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return jsonNull, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(raw)); err != nil {
		return nil, invalid("patientInfo", "must be valid JSON")
	}
	return json.RawMessage(buf.Bytes()), nil
}

// Submit validates the upload, forwards it to the engine and registers the
// job as pending.
func (g *Gateway) Submit(ctx context.Context, up Upload, patientInfo string) (*JobHandle, error) {
	tr := otel.Tracer("services/Gateway")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.String("upload.filename", up.Filename),
			attribute.Int("upload.bytes", len(up.Data)),
		),
	)
	defer span.End()

	if strings.TrimSpace(up.Filename) == "" || len(up.Data) == 0 {
		return nil, invalid("file", "a non-empty file is required")
	}
	info, err := normalizePatientInfo(patientInfo)
	if err != nil {
		return nil, err
	}

	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	var payload []byte
	if !bytes.Equal(info, jsonNull) {
		payload = info
	}
	jobID, err := g.Engine.Submit(ctx, up, payload)
	if err != nil {
		err = translateEngineErr(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
		return nil, err
	}
	span.SetAttributes(attribute.String("job.id", jobID))

	now := g.now()
	if g.Jobs != nil {
		g.Jobs.Register(jobID, info, now)
	}
	return &JobHandle{JobID: jobID, PatientInfo: info, SubmittedAt: now}, nil
}

// Status returns the tracked job, asking the engine for jobs this process
// has not seen.
func (g *Gateway) Status(ctx context.Context, id string) (*domain.AnalysisJob, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalid("id", "required")
	}
	if g.Jobs != nil {
		if j, ok := g.Jobs.Get(id); ok {
			return &j, nil
		}
	}

	ctx, span := otel.Tracer("services/Gateway").Start(ctx, "Status",
		trace.WithAttributes(attribute.String("job.id", id)))
	defer span.End()

	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}
	st, err := g.Engine.Status(ctx, id)
	if err != nil {
		return nil, translateEngineErr(err)
	}
	return jobFromStatus(st, g.now()), nil
}

func (g *Gateway) now() time.Time {
	if g.Now == nil {
		return time.Now().UTC()
	}
	return g.Now().UTC()
}

func jobFromStatus(st *engine.Status, now time.Time) *domain.AnalysisJob {
	j := &domain.AnalysisJob{
		ID:          st.JobID,
		SubmittedAt: now,
		UpdatedAt:   now,
		Progress:    st.Progress,
		Message:     st.Message,
		PatientInfo: st.PatientInfo,
		Result:      st.Result,
	}
	if s, ok := domain.ParseJobStatus(st.Status); ok {
		j.Status = s
	} else {
		j.Status = domain.JobProcessing
	}
	switch j.Status {
	case domain.JobCompleted:
		j.Progress = 100
	case domain.JobFailed:
		j.Error = st.Message
	}
	return j
}

// translateEngineErr maps engine client errors onto the service taxonomy.
func translateEngineErr(err error) error {
	var apiErr *engine.APIError
	switch {
	case errors.Is(err, engine.ErrUnavailable):
		return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
	case errors.Is(err, engine.ErrJobNotFound):
		return ErrNotFound
	case errors.As(err, &apiErr):
		return &UpstreamError{StatusCode: apiErr.StatusCode, Message: apiErr.Message}
	}
	return err
}
