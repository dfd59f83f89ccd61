// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file holds helpers shared by the scan, appointment and
// message repositories.
//
// Every record collection carries a monotonically increasing Seq column.
// NextSeq reads MAX(seq)+1; it is only race-free when the caller serializes
// writers for that collection (services.RecordStore holds a per-collection
// mutex around NextSeq + Create).
//
// Error semantics:
//   - Missing rows surface as ErrNotFound (gorm.ErrRecordNotFound).
//   - Unique violations on insert surface as ErrDuplicate.
//   - Anything else is the raw gorm error.
package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that a row with the same unique key already exists.
var ErrDuplicate = errors.New("duplicate")

// NextSeq returns the next insertion sequence for the table backing model.
func NextSeq(ctx context.Context, db *gorm.DB, model any) (int64, error) {
	var top int64
	err := db.WithContext(ctx).
		Model(model).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&top).Error
	if err != nil {
		return 0, err
	}
	return top + 1, nil
}

// isUniqueViolation recognizes UNIQUE/PRIMARY KEY failures.
// glebarez/sqlite often returns plain-text errors for these.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "constraint failed: primary key")
}

func create(ctx context.Context, db *gorm.DB, rec any) error {
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func updateByID(ctx context.Context, db *gorm.DB, model any, id string, changes map[string]any) error {
	res := db.WithContext(ctx).
		Model(model).
		Where("id = ?", id).
		Updates(changes)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
