package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/scan-pipeline/internal/domain"
)

// CreateScan inserts s as-is. ID, Seq and Timestamp must already be set.
// A second scan with the same ID returns ErrDuplicate.
func CreateScan(ctx context.Context, db *gorm.DB, s *domain.Scan) error {
	return create(ctx, db, s)
}

// GetScan fetches a scan by id, or ErrNotFound.
func GetScan(ctx context.Context, db *gorm.DB, id string) (*domain.Scan, error) {
	var s domain.Scan
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ListScans returns scans newest first. Empty status/severity mean "any";
// limit <= 0 means no limit.
func ListScans(ctx context.Context, db *gorm.DB, status, severity string, limit int) ([]domain.Scan, error) {
	out := []domain.Scan{}
	q := db.WithContext(ctx).Order("seq DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if severity != "" {
		q = q.Where("severity = ?", severity)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// UpdateScan writes changes (column -> value) to the scan with id.
// Returns ErrNotFound when no row matches.
func UpdateScan(ctx context.Context, db *gorm.DB, id string, changes map[string]any) error {
	return updateByID(ctx, db, &domain.Scan{}, id, changes)
}
