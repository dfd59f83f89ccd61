// Package services – RecordStore
//
// RecordStore is the keyed store for scans, appointments and messages. Each
// collection has its own writer lock held across the whole read-modify-write
// of every mutation (sequence allocation + insert, load + merge + save), so
// concurrent writers never lose an update or reuse a sequence number. Reads
// take no lock: SQLite in WAL mode serves a committed snapshot.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/scan-pipeline/internal/domain"
	"github.com/tbourn/scan-pipeline/internal/repo"
)

// Defaults applied to sparse create requests.
const (
	DefaultScanPatient        = "Anonymous Patient"
	DefaultAppointmentPatient = "Anonymous"
	DefaultDoctorID           = "DOC-001"
)

// ScanFilter narrows ListScans. Zero fields match everything.
type ScanFilter struct {
	Status   string
	Severity string
	Limit    int
}

// AppointmentFilter narrows ListAppointments.
type AppointmentFilter struct {
	Status   string
	DoctorID string
	Limit    int
}

// MessageFilter narrows ListMessages. PatientID matches either the patient a
// message is about or its sender.
type MessageFilter struct {
	PatientID string
	Limit     int
}

// ScanPatch lists the mutable scan fields; nil means "leave as is".
type ScanPatch struct {
	Status     *string
	Severity   *string
	Findings   *string
	ScanType   *string
	Confidence *int
}

// AppointmentPatch lists the mutable appointment fields.
type AppointmentPatch struct {
	Status   *domain.AppointmentStatus
	Date     *string
	Time     *string
	Reason   *string
	DoctorID *string
}

// MessagePatch lists the mutable message fields.
type MessagePatch struct {
	Read    *bool
	Content *string
}

// RecordStore persists the three record collections.
type RecordStore struct {
	DB  *gorm.DB
	Now func() time.Time

	scansMu sync.Mutex
	apptsMu sync.Mutex
	msgsMu  sync.Mutex
}

// NewRecordStore returns a store over db.
func NewRecordStore(db *gorm.DB) *RecordStore {
	return &RecordStore{DB: db, Now: time.Now}
}

func (s *RecordStore) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *RecordStore) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer("services/RecordStore").Start(ctx, name, trace.WithAttributes(attrs...))
}

// mapRepoErr translates repository errors into service errors.
func mapRepoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repo.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repo.ErrDuplicate):
		return ErrConflict
	}
	return err
}

//
// Scans
//

// CreateScan stores s, assigning id (when empty), sequence and timestamp.
// A duplicate id returns ErrConflict.
func (s *RecordStore) CreateScan(ctx context.Context, in domain.Scan) (*domain.Scan, error) {
	ctx, span := s.span(ctx, "CreateScan", attribute.String("scan.id", in.ID))
	defer span.End()

	in.PatientName = strings.TrimSpace(in.PatientName)
	if in.PatientName == "" {
		in.PatientName = DefaultScanPatient
	}
	if in.Confidence < 0 || in.Confidence > 100 {
		return nil, invalid("confidence", "must be between 0 and 100")
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}

	s.scansMu.Lock()
	defer s.scansMu.Unlock()

	seq, err := repo.NextSeq(ctx, s.DB, &domain.Scan{})
	if err != nil {
		return nil, err
	}
	now := s.now()
	in.Seq = seq
	if in.Timestamp.IsZero() {
		in.Timestamp = now
	}
	in.CreatedAt, in.UpdatedAt = now, now
	if err := repo.CreateScan(ctx, s.DB, &in); err != nil {
		return nil, mapRepoErr(err)
	}
	return &in, nil
}

// GetScan returns one scan or ErrNotFound.
func (s *RecordStore) GetScan(ctx context.Context, id string) (*domain.Scan, error) {
	out, err := repo.GetScan(ctx, s.DB, id)
	return out, mapRepoErr(err)
}

// ListScans returns scans newest first.
func (s *RecordStore) ListScans(ctx context.Context, f ScanFilter) ([]domain.Scan, error) {
	ctx, span := s.span(ctx, "ListScans", attribute.Int("limit", f.Limit))
	defer span.End()
	return repo.ListScans(ctx, s.DB, f.Status, f.Severity, f.Limit)
}

// UpdateScan merges p into the scan with id. A patch that changes nothing
// writes nothing and returns the stored scan unchanged.
func (s *RecordStore) UpdateScan(ctx context.Context, id string, p ScanPatch) (*domain.Scan, error) {
	ctx, span := s.span(ctx, "UpdateScan", attribute.String("scan.id", id))
	defer span.End()

	if p.Confidence != nil && (*p.Confidence < 0 || *p.Confidence > 100) {
		return nil, invalid("confidence", "must be between 0 and 100")
	}

	s.scansMu.Lock()
	defer s.scansMu.Unlock()

	cur, err := repo.GetScan(ctx, s.DB, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	changes := map[string]any{}
	setString(changes, "status", &cur.Status, p.Status)
	setString(changes, "severity", &cur.Severity, p.Severity)
	setString(changes, "findings", &cur.Findings, p.Findings)
	setString(changes, "scan_type", &cur.ScanType, p.ScanType)
	if p.Confidence != nil && *p.Confidence != cur.Confidence {
		cur.Confidence = *p.Confidence
		changes["confidence"] = cur.Confidence
	}
	if len(changes) == 0 {
		return cur, nil
	}
	cur.UpdatedAt = s.now()
	changes["updated_at"] = cur.UpdatedAt
	if err := repo.UpdateScan(ctx, s.DB, id, changes); err != nil {
		return nil, mapRepoErr(err)
	}
	return cur, nil
}

//
// Appointments
//

// CreateAppointment stores a, applying defaults for patient, doctor and
// status.
func (s *RecordStore) CreateAppointment(ctx context.Context, in domain.Appointment) (*domain.Appointment, error) {
	ctx, span := s.span(ctx, "CreateAppointment")
	defer span.End()

	in.PatientName = strings.TrimSpace(in.PatientName)
	if in.PatientName == "" {
		in.PatientName = DefaultAppointmentPatient
	}
	in.DoctorID = strings.TrimSpace(in.DoctorID)
	if in.DoctorID == "" {
		in.DoctorID = DefaultDoctorID
	}
	if in.Status == "" {
		in.Status = domain.AppointmentPending
	}
	if !in.Status.Valid() {
		return nil, invalid("status", fmt.Sprintf("unknown appointment status %q", in.Status))
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}

	s.apptsMu.Lock()
	defer s.apptsMu.Unlock()

	seq, err := repo.NextSeq(ctx, s.DB, &domain.Appointment{})
	if err != nil {
		return nil, err
	}
	now := s.now()
	in.Seq = seq
	if in.Timestamp.IsZero() {
		in.Timestamp = now
	}
	in.CreatedAt, in.UpdatedAt = now, now
	if err := repo.CreateAppointment(ctx, s.DB, &in); err != nil {
		return nil, mapRepoErr(err)
	}
	return &in, nil
}

// GetAppointment returns one appointment or ErrNotFound.
func (s *RecordStore) GetAppointment(ctx context.Context, id string) (*domain.Appointment, error) {
	out, err := repo.GetAppointment(ctx, s.DB, id)
	return out, mapRepoErr(err)
}

// ListAppointments returns appointments in insertion order.
func (s *RecordStore) ListAppointments(ctx context.Context, f AppointmentFilter) ([]domain.Appointment, error) {
	if f.Status != "" && !domain.AppointmentStatus(f.Status).Valid() {
		return nil, invalid("status", fmt.Sprintf("unknown appointment status %q", f.Status))
	}
	return repo.ListAppointments(ctx, s.DB, f.Status, f.DoctorID, f.Limit)
}

// UpdateAppointment merges p into the appointment with id. Setting the
// status it already has is a no-op.
func (s *RecordStore) UpdateAppointment(ctx context.Context, id string, p AppointmentPatch) (*domain.Appointment, error) {
	ctx, span := s.span(ctx, "UpdateAppointment", attribute.String("appointment.id", id))
	defer span.End()

	if p.Status != nil && !p.Status.Valid() {
		return nil, invalid("status", fmt.Sprintf("unknown appointment status %q", *p.Status))
	}

	s.apptsMu.Lock()
	defer s.apptsMu.Unlock()

	cur, err := repo.GetAppointment(ctx, s.DB, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	changes := map[string]any{}
	if p.Status != nil && *p.Status != cur.Status {
		cur.Status = *p.Status
		changes["status"] = string(cur.Status)
	}
	setString(changes, "date", &cur.Date, p.Date)
	setString(changes, "time", &cur.Time, p.Time)
	setString(changes, "reason", &cur.Reason, p.Reason)
	setString(changes, "doctor_id", &cur.DoctorID, p.DoctorID)
	if len(changes) == 0 {
		return cur, nil
	}
	cur.UpdatedAt = s.now()
	changes["updated_at"] = cur.UpdatedAt
	if err := repo.UpdateAppointment(ctx, s.DB, id, changes); err != nil {
		return nil, mapRepoErr(err)
	}
	return cur, nil
}

//
// Messages
//

// CreateMessage stores m. SenderID, RecipientID and Content are required.
func (s *RecordStore) CreateMessage(ctx context.Context, in domain.Message) (*domain.Message, error) {
	ctx, span := s.span(ctx, "CreateMessage")
	defer span.End()

	in.SenderID = strings.TrimSpace(in.SenderID)
	in.RecipientID = strings.TrimSpace(in.RecipientID)
	in.Content = strings.TrimSpace(in.Content)
	switch {
	case in.SenderID == "":
		return nil, invalid("senderId", "required")
	case in.RecipientID == "":
		return nil, invalid("recipientId", "required")
	case in.Content == "":
		return nil, invalid("content", "required")
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}

	s.msgsMu.Lock()
	defer s.msgsMu.Unlock()

	seq, err := repo.NextSeq(ctx, s.DB, &domain.Message{})
	if err != nil {
		return nil, err
	}
	now := s.now()
	in.Seq = seq
	if in.Timestamp.IsZero() {
		in.Timestamp = now
	}
	in.CreatedAt, in.UpdatedAt = now, now
	if err := repo.CreateMessage(ctx, s.DB, &in); err != nil {
		return nil, mapRepoErr(err)
	}
	return &in, nil
}

// GetMessage returns one message or ErrNotFound.
func (s *RecordStore) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	out, err := repo.GetMessage(ctx, s.DB, id)
	return out, mapRepoErr(err)
}

// ListMessages returns messages in insertion order.
func (s *RecordStore) ListMessages(ctx context.Context, f MessageFilter) ([]domain.Message, error) {
	return repo.ListMessages(ctx, s.DB, strings.TrimSpace(f.PatientID), f.Limit)
}

// UpdateMessage merges p into the message with id.
func (s *RecordStore) UpdateMessage(ctx context.Context, id string, p MessagePatch) (*domain.Message, error) {
	ctx, span := s.span(ctx, "UpdateMessage", attribute.String("message.id", id))
	defer span.End()

	if p.Content != nil && strings.TrimSpace(*p.Content) == "" {
		return nil, invalid("content", "must not be empty")
	}

	s.msgsMu.Lock()
	defer s.msgsMu.Unlock()

	cur, err := repo.GetMessage(ctx, s.DB, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	changes := map[string]any{}
	if p.Read != nil && *p.Read != cur.Read {
		cur.Read = *p.Read
		changes["read"] = cur.Read
	}
	setString(changes, "content", &cur.Content, p.Content)
	if len(changes) == 0 {
		return cur, nil
	}
	cur.UpdatedAt = s.now()
	changes["updated_at"] = cur.UpdatedAt
	if err := repo.UpdateMessage(ctx, s.DB, id, changes); err != nil {
		return nil, mapRepoErr(err)
	}
	return cur, nil
}

//
// Versions
//

// Version returns an opaque token that changes whenever any record in the
// collection is created or updated. Handlers build list ETags from it.
func (s *RecordStore) Version(ctx context.Context, c domain.Collection) (string, error) {
	var model any
	switch c {
	case domain.CollectionScans:
		model = &domain.Scan{}
	case domain.CollectionAppointments:
		model = &domain.Appointment{}
	case domain.CollectionMessages:
		model = &domain.Message{}
	default:
		return "", invalid("collection", fmt.Sprintf("unknown collection %q", c))
	}
	count, maxSeq, maxUpd, err := repo.CollectionStats(ctx, s.DB, model)
	if err != nil {
		return "", err
	}
	var ts int64
	if maxUpd != nil {
		ts = maxUpd.UnixNano()
	}
	return fmt.Sprintf("%s:%d:%d:%d", c, count, maxSeq, ts), nil
}

// setString applies a non-nil patch value that differs from *cur.
func setString(changes map[string]any, column string, cur *string, v *string) {
	if v == nil || *v == *cur {
		return
	}
	*cur = *v
	changes[column] = *v
}
