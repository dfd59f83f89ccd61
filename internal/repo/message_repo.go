package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/scan-pipeline/internal/domain"
)

// CreateMessage inserts m; ErrDuplicate on id collision.
func CreateMessage(ctx context.Context, db *gorm.DB, m *domain.Message) error {
	return create(ctx, db, m)
}

// GetMessage fetches a message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMessages returns messages in insertion order. A non-empty patientID
// matches conversations about the patient as well as messages the patient
// sent.
func ListMessages(ctx context.Context, db *gorm.DB, patientID string, limit int) ([]domain.Message, error) {
	out := []domain.Message{}
	q := db.WithContext(ctx).Order("seq ASC")
	if patientID != "" {
		q = q.Where("patient_id = ? OR sender_id = ?", patientID, patientID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// UpdateMessage writes changes to the message with id.
func UpdateMessage(ctx context.Context, db *gorm.DB, id string, changes map[string]any) error {
	return updateByID(ctx, db, &domain.Message{}, id, changes)
}
