package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/scan-pipeline/internal/broadcast"
	"github.com/tbourn/scan-pipeline/internal/domain"
	"github.com/tbourn/scan-pipeline/internal/http/middleware"
	"github.com/tbourn/scan-pipeline/internal/notify"
	"github.com/tbourn/scan-pipeline/internal/repo"
	"github.com/tbourn/scan-pipeline/internal/services"
)

// stubGateway records submissions and answers with canned results.
type stubGateway struct {
	mu        sync.Mutex
	handle    *services.JobHandle
	submitErr error
	job       *domain.AnalysisJob
	statusErr error

	gotUpload services.Upload
	gotInfo   string
}

func (g *stubGateway) Submit(_ context.Context, up services.Upload, patientInfo string) (*services.JobHandle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gotUpload, g.gotInfo = up, patientInfo
	if g.submitErr != nil {
		return nil, g.submitErr
	}
	return g.handle, nil
}

func (g *stubGateway) Status(_ context.Context, _ string) (*domain.AnalysisJob, error) {
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	return g.job, nil
}

type testEnv struct {
	h        *Handlers
	r        *gin.Engine
	gw       *stubGateway
	store    *services.RecordStore
	hub      *broadcast.Hub
	sessions *notify.Registry
}

func collectionOf(c *gin.Context) string {
	switch c.FullPath() {
	case "/scans":
		return string(domain.CollectionScans)
	case "/appointments":
		return string(domain.CollectionAppointments)
	case "/messages":
		return string(domain.CollectionMessages)
	}
	return ""
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "handlers.db"), repo.WithSilentLogger())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	hub := broadcast.NewHub(nil, broadcast.Options{Buffer: 16, Logger: zerolog.Nop()})
	t.Cleanup(hub.Close)

	env := &testEnv{
		gw:       &stubGateway{},
		store:    services.NewRecordStore(db),
		hub:      hub,
		sessions: notify.NewRegistry(hub, time.Minute, zerolog.Nop()),
	}
	idem := services.NewIdempotencyStore(db, time.Hour)
	env.h = New(Deps{
		Gateway:     env.gw,
		Records:     env.store,
		Idempotency: idem,
		Hub:         hub,
		Sessions:    env.sessions,
		Heartbeat:   time.Hour,
	})

	r := gin.New()
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{Collection: collectionOf}, idem.Exists))
	r.GET("/health", env.h.Health)
	r.GET("/ready", env.h.Ready)
	r.POST("/analyze", env.h.Analyze)
	r.GET("/analyze/:id", env.h.JobStatus)
	r.GET("/events", env.h.Events)
	r.GET("/sessions/:sid/toasts", env.h.ListToasts)
	r.POST("/sessions/:sid/toasts", env.h.CreateToast)
	r.DELETE("/sessions/:sid/toasts/:toastId", env.h.DismissToast)
	r.GET("/scans", env.h.ListScans)
	r.POST("/scans", env.h.CreateScan)
	r.PUT("/scans/:id", env.h.UpdateScan)
	r.GET("/appointments", env.h.ListAppointments)
	r.POST("/appointments", env.h.CreateAppointment)
	r.PUT("/appointments", env.h.UpdateAppointment)
	r.PUT("/appointments/:id", env.h.UpdateAppointment)
	r.GET("/messages", env.h.ListMessages)
	r.POST("/messages", env.h.PostMessage)
	r.PUT("/messages/:id", env.h.UpdateMessage)
	env.r = r
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

// multipartUpload builds an /analyze request body.
func multipartUpload(t *testing.T, filename string, data []byte, patientInfo string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if patientInfo != "" {
		if err := mw.WriteField("patientInfo", patientInfo); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func postUpload(e *testEnv, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}
