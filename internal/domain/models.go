package domain

import (
	"encoding/json"
	"time"
)

// Collection names a keyed record collection. Each collection serializes its
// own writes independently of the others.
type Collection string

const (
	CollectionScans        Collection = "scans"
	CollectionAppointments Collection = "appointments"
	CollectionMessages     Collection = "messages"
)

// Scan is an analysed scan surfaced on the doctor dashboards. Scans recorded
// from a completed job use the job id as their own id, so replays of the same
// completion never create a second row.
//
// Fields:
//   - Seq: per-collection insertion sequence, allocated under the collection's
//     write lock; lists order by it (newest first for scans).
//   - Result: the engine's full analysis payload, kept verbatim.
type Scan struct {
	ID          string          `json:"id"          gorm:"type:varchar(64);primaryKey"`
	Seq         int64           `json:"seq"         gorm:"not null;uniqueIndex:ux_scans_seq"`
	JobID       string          `json:"jobId,omitempty" gorm:"type:varchar(64);index"`
	PatientName string          `json:"name"        gorm:"type:varchar(255)"`
	Age         string          `json:"age,omitempty"`
	Contact     string          `json:"contact,omitempty"`
	Email       string          `json:"email,omitempty"`
	Address     string          `json:"address,omitempty"`
	ScanType    string          `json:"scanType,omitempty"`
	Status      string          `json:"status,omitempty"  gorm:"index"`
	Severity    string          `json:"severity,omitempty" gorm:"index"`
	Confidence  int             `json:"confidence"`
	Findings    string          `json:"findings,omitempty" gorm:"type:text"`
	Result      json.RawMessage `json:"analysisResult,omitempty" gorm:"type:blob"`
	Timestamp   time.Time       `json:"timestamp"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// TableName returns the database table name for Scan.
func (Scan) TableName() string { return "scans" }

// AppointmentStatus is the lifecycle of an appointment request.
type AppointmentStatus string

const (
	AppointmentPending     AppointmentStatus = "pending"
	AppointmentConfirmed   AppointmentStatus = "confirmed"
	AppointmentRescheduled AppointmentStatus = "rescheduled"
	AppointmentCompleted   AppointmentStatus = "completed"
)

// Valid reports whether s is a known appointment status.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentPending, AppointmentConfirmed, AppointmentRescheduled, AppointmentCompleted:
		return true
	}
	return false
}

// Appointment is a patient's request to see a doctor.
type Appointment struct {
	ID          string            `json:"id"          gorm:"type:varchar(64);primaryKey"`
	Seq         int64             `json:"seq"         gorm:"not null;uniqueIndex:ux_appointments_seq"`
	PatientName string            `json:"patientName" gorm:"type:varchar(255);not null"`
	DoctorID    string            `json:"doctorId"    gorm:"type:varchar(64);not null;index"`
	Date        string            `json:"date"`
	Time        string            `json:"time"`
	Reason      string            `json:"reason,omitempty" gorm:"type:text"`
	Status      AppointmentStatus `json:"status"      gorm:"type:varchar(16);not null;index;check:chk_appointments_status,status IN ('pending','confirmed','rescheduled','completed')"`
	Timestamp   time.Time         `json:"timestamp"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// TableName returns the database table name for Appointment.
func (Appointment) TableName() string { return "appointments" }

// Message is a doctor/patient message.
type Message struct {
	ID            string    `json:"id"            gorm:"type:varchar(64);primaryKey"`
	Seq           int64     `json:"seq"           gorm:"not null;uniqueIndex:ux_messages_seq"`
	SenderID      string    `json:"senderId"      gorm:"type:varchar(64);not null;index"`
	SenderRole    string    `json:"senderRole,omitempty" gorm:"type:varchar(16)"`
	RecipientID   string    `json:"recipientId"   gorm:"type:varchar(64);not null"`
	RecipientRole string    `json:"recipientRole,omitempty" gorm:"type:varchar(16)"`
	PatientID     string    `json:"patientId,omitempty" gorm:"type:varchar(64);index"`
	Content       string    `json:"content"       gorm:"type:text;not null"`
	Read          bool      `json:"read"`
	Timestamp     time.Time `json:"timestamp"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }
