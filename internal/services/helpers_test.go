package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/tbourn/scan-pipeline/internal/engine"
	"github.com/tbourn/scan-pipeline/internal/repo"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "svc.db"), repo.WithSilentLogger())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// fakeEngine records submissions and serves canned statuses.
type fakeEngine struct {
	mu          sync.Mutex
	jobID       string
	submitErr   error
	statusErr   error
	failures    int // Status calls answered with ErrUnavailable before succeeding
	statuses    map[string]*engine.Status
	gotUpload   engine.Upload
	gotInfo     []byte
	statusCalls int
}

func (f *fakeEngine) Submit(_ context.Context, up engine.Upload, info []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotUpload, f.gotInfo = up, info
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return f.jobID, nil
}

func (f *fakeEngine) Status(_ context.Context, id string) (*engine.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.failures > 0 {
		f.failures--
		return nil, engine.ErrUnavailable
	}
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	st, ok := f.statuses[id]
	if !ok {
		return nil, engine.ErrJobNotFound
	}
	return st, nil
}

func ptr[T any](v T) *T { return &v }
