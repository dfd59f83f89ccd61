// Package handlers provides the HTTP handlers of the scan pipeline API.
//
// Handlers are transport-thin: they bind and validate input, call the
// services, and translate results (and service errors, see failFromErr)
// into HTTP responses. Every dependency is an interface so tests can swap
// in stubs.
package handlers

import (
	"context"
	"time"

	"github.com/tbourn/scan-pipeline/internal/broadcast"
	"github.com/tbourn/scan-pipeline/internal/domain"
	"github.com/tbourn/scan-pipeline/internal/notify"
	"github.com/tbourn/scan-pipeline/internal/services"
)

// Gateway submits scans to the analysis engine and reports job status.
type Gateway interface {
	Submit(ctx context.Context, up services.Upload, patientInfo string) (*services.JobHandle, error)
	Status(ctx context.Context, id string) (*domain.AnalysisJob, error)
}

// Records is the record store as seen by the HTTP layer.
type Records interface {
	CreateScan(ctx context.Context, s domain.Scan) (*domain.Scan, error)
	GetScan(ctx context.Context, id string) (*domain.Scan, error)
	ListScans(ctx context.Context, f services.ScanFilter) ([]domain.Scan, error)
	UpdateScan(ctx context.Context, id string, p services.ScanPatch) (*domain.Scan, error)

	CreateAppointment(ctx context.Context, a domain.Appointment) (*domain.Appointment, error)
	GetAppointment(ctx context.Context, id string) (*domain.Appointment, error)
	ListAppointments(ctx context.Context, f services.AppointmentFilter) ([]domain.Appointment, error)
	UpdateAppointment(ctx context.Context, id string, p services.AppointmentPatch) (*domain.Appointment, error)

	CreateMessage(ctx context.Context, m domain.Message) (*domain.Message, error)
	GetMessage(ctx context.Context, id string) (*domain.Message, error)
	ListMessages(ctx context.Context, f services.MessageFilter) ([]domain.Message, error)
	UpdateMessage(ctx context.Context, id string, p services.MessagePatch) (*domain.Message, error)

	Version(ctx context.Context, c domain.Collection) (string, error)
}

// Idempotency stores which record a keyed create produced.
type Idempotency interface {
	Lookup(ctx context.Context, clientID, collection, key string, now time.Time) (recordID string, status int, found bool, err error)
	Save(ctx context.Context, clientID, collection, key, recordID string, status int) error
}

// Deps wires Handlers.
type Deps struct {
	Gateway     Gateway
	Records     Records
	Idempotency Idempotency
	Hub         *broadcast.Hub
	Sessions    *notify.Registry

	// MaxUploadSize caps one uploaded scan; 0 means 50 MiB.
	MaxUploadSize int64
	// Heartbeat is the keep-alive cadence on event streams; 0 means 15s.
	Heartbeat time.Duration
}

// Handlers groups every endpoint.
type Handlers struct {
	gw       Gateway
	records  Records
	idem     Idempotency
	hub      *broadcast.Hub
	sessions *notify.Registry

	maxUpload int64
	heartbeat time.Duration
}

// New builds Handlers from d.
func New(d Deps) *Handlers {
	h := &Handlers{
		gw:        d.Gateway,
		records:   d.Records,
		idem:      d.Idempotency,
		hub:       d.Hub,
		sessions:  d.Sessions,
		maxUpload: d.MaxUploadSize,
		heartbeat: d.Heartbeat,
	}
	if h.maxUpload <= 0 {
		h.maxUpload = 50 << 20
	}
	if h.heartbeat <= 0 {
		h.heartbeat = 15 * time.Second
	}
	return h
}
