package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/scan-pipeline/internal/domain"
)

// CreateAppointment inserts a; ErrDuplicate on id collision.
func CreateAppointment(ctx context.Context, db *gorm.DB, a *domain.Appointment) error {
	return create(ctx, db, a)
}

// GetAppointment fetches an appointment by id, or ErrNotFound.
func GetAppointment(ctx context.Context, db *gorm.DB, id string) (*domain.Appointment, error) {
	var a domain.Appointment
	if err := db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAppointments returns appointments in insertion order, optionally
// filtered by status and doctor.
func ListAppointments(ctx context.Context, db *gorm.DB, status, doctorID string, limit int) ([]domain.Appointment, error) {
	out := []domain.Appointment{}
	q := db.WithContext(ctx).Order("seq ASC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if doctorID != "" {
		q = q.Where("doctor_id = ?", doctorID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// UpdateAppointment writes changes to the appointment with id.
func UpdateAppointment(ctx context.Context, db *gorm.DB, id string, changes map[string]any) error {
	return updateByID(ctx, db, &domain.Appointment{}, id, changes)
}
