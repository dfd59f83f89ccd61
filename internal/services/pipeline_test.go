package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/scan-pipeline/internal/broadcast"
	"github.com/tbourn/scan-pipeline/internal/domain"
	"github.com/tbourn/scan-pipeline/internal/engine"
)

const anomalyResult = `{
	"anomalyDetected": true,
	"confidenceScore": 92.6,
	"severity": "high",
	"findings": ["Mass in left lobe", "Irregular margins"],
	"recommendations": ["Biopsy"],
	"technicalDetails": {"modelType": "CT-Liver", "fileId": "f1"}
}`

func newPipeline(t *testing.T, fe *fakeEngine) (*JobPipeline, *RecordStore, *JobTracker) {
	t.Helper()
	store := NewRecordStore(newSvcDB(t))
	jobs := NewJobTracker()
	p := &JobPipeline{
		Jobs:          jobs,
		Engine:        fe,
		Store:         store,
		StatusTimeout: time.Second,
		Log:           zerolog.Nop(),
		RetryInitial:  time.Millisecond,
		RetryMax:      4 * time.Millisecond,
		Retries:       3,
	}
	t.Cleanup(p.Wait)
	return p, store, jobs
}

func TestJobPipeline_CompletedAnomalyRecordsScanOnce(t *testing.T) {
	fe := &fakeEngine{statuses: map[string]*engine.Status{
		"job-1": {JobID: "job-1", Status: "completed", Result: json.RawMessage(anomalyResult)},
	}}
	p, store, jobs := newPipeline(t, fe)
	ctx := context.Background()
	now := time.Now()

	jobs.Register("job-1", json.RawMessage(`{"name":"Ada","age":36,"email":"ada@example.com","scanType":"MRI"}`), now)
	p.Handle(ctx, evt("job-1", domain.JobProcessing, now))
	if fe.statusCalls != 0 {
		t.Fatalf("non-terminal events must not query the engine")
	}
	p.Handle(ctx, evt("job-1", domain.JobCompleted, now))
	// A replayed completion is a no-op in the tracker.
	p.Handle(ctx, evt("job-1", domain.JobCompleted, now))

	scans, err := store.ListScans(ctx, ScanFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(scans) != 1 {
		t.Fatalf("want 1 scan, got %d", len(scans))
	}
	s := scans[0]
	if s.ID != "job-1" || s.JobID != "job-1" || s.PatientName != "Ada" || s.Age != "36" || s.Email != "ada@example.com" {
		t.Fatalf("patient fields: %+v", s)
	}
	if s.ScanType != "MRI" || s.Status != AnomalyStatus || s.Severity != "high" || s.Confidence != 93 {
		t.Fatalf("analysis fields: %+v", s)
	}
	if s.Findings != "Mass in left lobe; Irregular margins" {
		t.Fatalf("findings = %q", s.Findings)
	}

	j, _ := jobs.Get("job-1")
	if len(j.Result) == 0 {
		t.Fatalf("result not attached to tracked job")
	}
}

func TestJobPipeline_PatientInfoFromEngineString(t *testing.T) {
	fe := &fakeEngine{statuses: map[string]*engine.Status{
		"job-2": {
			JobID:       "job-2",
			Status:      "completed",
			Result:      json.RawMessage(anomalyResult),
			PatientInfo: json.RawMessage(`"{\"name\":\"Bo\"}"`),
		},
	}}
	p, store, _ := newPipeline(t, fe)
	p.Handle(context.Background(), evt("job-2", domain.JobCompleted, time.Now()))

	s, err := store.GetScan(context.Background(), "job-2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if s.PatientName != "Bo" || s.ScanType != "CT-Liver" {
		t.Fatalf("unexpected scan: %+v", s)
	}
}

func TestJobPipeline_NoAnomalyNoScan(t *testing.T) {
	fe := &fakeEngine{statuses: map[string]*engine.Status{
		"job-3": {JobID: "job-3", Status: "completed", Result: json.RawMessage(`{"anomalyDetected":false}`)},
	}}
	p, store, _ := newPipeline(t, fe)
	p.Handle(context.Background(), evt("job-3", domain.JobCompleted, time.Now()))

	scans, _ := store.ListScans(context.Background(), ScanFilter{})
	if len(scans) != 0 {
		t.Fatalf("want no scans, got %+v", scans)
	}
}

func TestJobPipeline_EngineDownGivesUpAfterRetries(t *testing.T) {
	fe := &fakeEngine{statusErr: engine.ErrUnavailable}
	p, store, jobs := newPipeline(t, fe)
	p.Handle(context.Background(), evt("job-4", domain.JobCompleted, time.Now()))
	p.Wait()

	if fe.statusCalls != 4 {
		t.Fatalf("Status called %d times; want 4 (first try plus 3 retries)", fe.statusCalls)
	}

	if j, ok := jobs.Get("job-4"); !ok || j.Status != domain.JobCompleted {
		t.Fatalf("tracker should still record completion: %+v", j)
	}
	scans, _ := store.ListScans(context.Background(), ScanFilter{})
	if len(scans) != 0 {
		t.Fatalf("want no scans")
	}
}

func TestJobPipeline_RetriesCompletionWhileEngineUnreachable(t *testing.T) {
	fe := &fakeEngine{
		failures: 2,
		statuses: map[string]*engine.Status{
			"job-6": {JobID: "job-6", Status: "completed", Result: json.RawMessage(anomalyResult)},
		},
	}
	p, store, _ := newPipeline(t, fe)
	ctx := context.Background()
	p.Handle(ctx, evt("job-6", domain.JobCompleted, time.Now()))
	p.Wait()

	if _, err := store.GetScan(ctx, "job-6"); err != nil {
		t.Fatalf("scan not recorded after engine recovered: %v", err)
	}
	if fe.statusCalls != 3 {
		t.Fatalf("Status called %d times; want 3", fe.statusCalls)
	}
}

func TestJobPipeline_NotFoundIsNotRetried(t *testing.T) {
	fe := &fakeEngine{statuses: map[string]*engine.Status{}}
	p, _, _ := newPipeline(t, fe)
	p.Handle(context.Background(), evt("job-7", domain.JobCompleted, time.Now()))
	p.Wait()
	if fe.statusCalls != 1 {
		t.Fatalf("Status called %d times; want 1", fe.statusCalls)
	}
}

func TestJobPipeline_RunConsumesHub(t *testing.T) {
	fe := &fakeEngine{statuses: map[string]*engine.Status{
		"job-5": {JobID: "job-5", Status: "completed", Result: json.RawMessage(anomalyResult)},
	}}
	p, store, _ := newPipeline(t, fe)
	hub := broadcast.NewHub(nil, broadcast.Options{Logger: zerolog.Nop()})
	p.Hub = hub

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("pipeline never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}
	hub.Publish(evt("job-5", domain.JobCompleted, time.Now()))

	for {
		if _, err := store.GetScan(context.Background(), "job-5"); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("scan not recorded")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop")
	}
}

func TestFindingsTextAndClamp(t *testing.T) {
	if got := findingsText(json.RawMessage(`"single"`)); got != "single" {
		t.Fatalf("string findings = %q", got)
	}
	if got := findingsText(nil); got != "" {
		t.Fatalf("nil findings = %q", got)
	}
	for in, want := range map[float64]int{-3: 0, 0: 0, 55.4: 55, 140: 100} {
		if got := clampPercent(in); got != want {
			t.Fatalf("clampPercent(%v) = %d; want %d", in, got, want)
		}
	}
}
