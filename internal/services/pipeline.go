// Package services – JobPipeline
//
// JobPipeline follows the engine's event stream on behalf of the server: it
// advances the job tracker and, when a job completes with an anomaly, records
// a scan for the doctor dashboards. The scan uses the job id as its own id,
// so a replayed completion never creates a second record.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/tbourn/scan-pipeline/internal/broadcast"
	"github.com/tbourn/scan-pipeline/internal/domain"
)

// AnomalyStatus is the review status given to scans recorded from a job.
const AnomalyStatus = "Anomaly Detected"

// Defaults for retrying a completion follow-up the engine could not answer.
const (
	defaultRetryInitial = 500 * time.Millisecond
	defaultRetryMax     = 10 * time.Second
	defaultRetries      = 5
)

// JobPipeline reacts to engine events.
type JobPipeline struct {
	Hub           *broadcast.Hub
	Jobs          *JobTracker
	Engine        Engine
	Store         *RecordStore
	StatusTimeout time.Duration
	Log           zerolog.Logger

	// A follow-up that fails with a transient engine error is retried in the
	// background with exponential backoff. Zero values use the defaults.
	RetryInitial time.Duration
	RetryMax     time.Duration
	Retries      uint64

	inflight sync.WaitGroup
}

// Run consumes hub events until ctx is done, then waits for pending retries.
func (p *JobPipeline) Run(ctx context.Context) error {
	log := p.Log.With().Str("component", "pipeline").Logger()
	log.Info().Msg("job pipeline started")
	defer log.Info().Msg("job pipeline stopped")
	err := p.Hub.Consume(ctx, func(evt domain.NotificationEvent) {
		p.Handle(ctx, evt)
	})
	p.Wait()
	return err
}

// Wait blocks until every background retry has finished.
func (p *JobPipeline) Wait() { p.inflight.Wait() }

// Handle applies one event. The first completion follow-up runs
// synchronously so the scan usually exists before the next event is read.
// The tracker only reports a completion once, so a transient failure is
// retried here rather than on a replayed event.
func (p *JobPipeline) Handle(ctx context.Context, evt domain.NotificationEvent) {
	job, changed := p.Jobs.Apply(evt)
	if !changed || job.Status != domain.JobCompleted {
		return
	}
	err := p.recordCompletion(ctx, job)
	if err == nil {
		return
	}
	if !transient(err) {
		p.Log.Warn().Err(err).Str("job_id", job.ID).Msg("could not record completed job")
		return
	}
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		p.retryCompletion(ctx, job, err)
	}()
}

func (p *JobPipeline) retryCompletion(ctx context.Context, job domain.AnalysisJob, cause error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = orDefault(p.RetryInitial, defaultRetryInitial)
	exp.MaxInterval = orDefault(p.RetryMax, defaultRetryMax)
	exp.MaxElapsedTime = 0
	retries := p.Retries
	if retries == 0 {
		retries = defaultRetries
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, retries), ctx)

	attempt := 0
	op := func() error {
		attempt++
		if attempt == 1 {
			// Handle already made this attempt.
			return cause
		}
		err := p.recordCompletion(ctx, job)
		if err != nil && !transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		p.Log.Debug().Err(err).Str("job_id", job.ID).Dur("retry_in", wait).Msg("retrying completed job follow-up")
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		p.Log.Warn().Err(err).Str("job_id", job.ID).Int("attempts", attempt).Msg("could not record completed job")
	}
}

// transient reports engine failures worth another try.
func transient(err error) bool {
	if errors.Is(err, ErrServiceUnavailable) {
		return true
	}
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.StatusCode >= 500
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// analysisResult is the part of the engine's result payload the pipeline reads.
type analysisResult struct {
	AnomalyDetected  bool            `json:"anomalyDetected"`
	ConfidenceScore  float64         `json:"confidenceScore"`
	Severity         string          `json:"severity"`
	Findings         json.RawMessage `json:"findings"`
	TechnicalDetails struct {
		ModelType string `json:"modelType"`
	} `json:"technicalDetails"`
}

// patientInfo is the submitter's metadata as the UI sends it.
type patientInfo struct {
	Name     string `json:"name"`
	Age      any    `json:"age"`
	Contact  string `json:"contact"`
	Email    string `json:"email"`
	Address  string `json:"address"`
	ScanType string `json:"scanType"`
}

func (p *JobPipeline) recordCompletion(ctx context.Context, job domain.AnalysisJob) error {
	if p.Engine == nil || p.Store == nil {
		return nil
	}
	if p.StatusTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.StatusTimeout)
		defer cancel()
	}
	st, err := p.Engine.Status(ctx, job.ID)
	if err != nil {
		return translateEngineErr(err)
	}
	if len(st.Result) == 0 {
		return nil
	}
	p.Jobs.SetResult(job.ID, st.Result)

	var res analysisResult
	if err := json.Unmarshal(st.Result, &res); err != nil {
		return err
	}
	if !res.AnomalyDetected {
		return nil
	}

	info := decodePatientInfo(job.PatientInfo)
	if info.Name == "" {
		info = decodePatientInfo(st.PatientInfo)
	}
	scanType := firstNonEmpty(info.ScanType, res.TechnicalDetails.ModelType)

	scan := domain.Scan{
		ID:          job.ID,
		JobID:       job.ID,
		PatientName: info.Name,
		Age:         stringify(info.Age),
		Contact:     info.Contact,
		Email:       info.Email,
		Address:     info.Address,
		ScanType:    scanType,
		Status:      AnomalyStatus,
		Severity:    res.Severity,
		Confidence:  clampPercent(res.ConfidenceScore),
		Findings:    findingsText(res.Findings),
		Result:      st.Result,
	}
	if _, err := p.Store.CreateScan(ctx, scan); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil
		}
		return err
	}
	p.Log.Info().Str("job_id", job.ID).Str("severity", res.Severity).Msg("anomaly recorded for review")
	return nil
}

// decodePatientInfo accepts either a JSON object or a JSON string holding one.
func decodePatientInfo(raw json.RawMessage) patientInfo {
	var info patientInfo
	if len(raw) == 0 {
		return info
	}
	if json.Unmarshal(raw, &info) == nil {
		return info
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		_ = json.Unmarshal([]byte(s), &info)
	}
	return info
}

// findingsText flattens findings given as a string or a list of strings.
func findingsText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var list []string
	if json.Unmarshal(raw, &list) == nil {
		return strings.Join(list, "; ")
	}
	return string(raw)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

func clampPercent(f float64) int {
	switch {
	case f < 0:
		return 0
	case f > 100:
		return 100
	}
	return int(f + 0.5)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
