package handlers

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/scan-pipeline/internal/domain"
	"github.com/tbourn/scan-pipeline/internal/http/middleware"
)

// sseReader yields the event names of a server-sent event stream.
type sseReader struct {
	sc    *bufio.Scanner
	names chan string
}

func newSSEReader(resp *http.Response) *sseReader {
	r := &sseReader{sc: bufio.NewScanner(resp.Body), names: make(chan string, 64)}
	go func() {
		defer close(r.names)
		for r.sc.Scan() {
			if name, ok := strings.CutPrefix(r.sc.Text(), "event:"); ok {
				r.names <- strings.TrimSpace(name)
			}
		}
	}()
	return r
}

// next returns the next event name other than heartbeat.
func (r *sseReader) next(t *testing.T) string {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case name, ok := <-r.names:
			if !ok {
				t.Fatalf("stream ended")
			}
			if name != "heartbeat" {
				return name
			}
		case <-deadline:
			t.Fatalf("timed out waiting for an event")
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEvents_StatusThenExactlyOneToastOnCompletion(t *testing.T) {
	e := newEnv(t)
	srv := httptest.NewServer(e.r)
	t.Cleanup(srv.Close)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/events", nil)
	req.Header.Set(middleware.HeaderSessionID, "tab-1")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}

	sse := newSSEReader(resp)
	if got := sse.next(t); got != "connected" {
		t.Fatalf("first event = %q; want connected", got)
	}
	// One subscription for the stream, one for the session's toast pump.
	waitFor(t, func() bool { return e.hub.Len() == 2 })

	e.hub.Publish(domain.NotificationEvent{JobID: "job-1", Status: domain.JobProcessing, Message: "working", Timestamp: time.Now()})
	if got := sse.next(t); got != "status" {
		t.Fatalf("processing event = %q; want status", got)
	}

	e.hub.Publish(domain.NotificationEvent{JobID: "job-1", Status: domain.JobCompleted, Message: "done", Timestamp: time.Now()})
	got := []string{sse.next(t), sse.next(t)}
	statuses, toasts := 0, 0
	for _, name := range got {
		switch name {
		case "status":
			statuses++
		case "toast":
			toasts++
		}
	}
	if statuses != 1 || toasts != 1 {
		t.Fatalf("completion events = %v; want one status and one toast", got)
	}

	sess, err := e.sessions.Get("tab-1")
	if err != nil {
		t.Fatalf("session not registered: %v", err)
	}
	if n := sess.Queue.Len(); n != 1 {
		t.Fatalf("queue holds %d toasts; want 1", n)
	}
}

func TestEvents_SessionReleasedOnDisconnect(t *testing.T) {
	e := newEnv(t)
	srv := httptest.NewServer(e.r)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/events?session=tab-2")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	sse := newSSEReader(resp)
	if got := sse.next(t); got != "connected" {
		t.Fatalf("first event = %q", got)
	}
	if _, err := e.sessions.Get("tab-2"); err != nil {
		t.Fatalf("session missing while stream open: %v", err)
	}

	_ = resp.Body.Close()
	waitFor(t, func() bool { return e.sessions.Len() == 0 && e.hub.Len() == 0 })
}
