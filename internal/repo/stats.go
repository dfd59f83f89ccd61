// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// CollectionStats returns the total number of rows in the table backing model
// and the greatest UpdatedAt among them. When the table is empty the count is
// 0 and maxUpdatedAt is nil.
//
// Together with the greatest Seq these change whenever a row is inserted or
// updated, which is all a weak list ETag needs.
func CollectionStats(ctx context.Context, db *gorm.DB, model any) (count int64, maxSeq int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(model)

	if err = q.Count(&count).Error; err != nil {
		return 0, 0, nil, err
	}
	if count == 0 {
		return 0, 0, nil, nil
	}

	// Get latest row values (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = db.WithContext(ctx).Model(model).Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, 0, nil, err
	}
	if err = db.WithContext(ctx).Model(model).Select("COALESCE(MAX(seq), 0)").Scan(&maxSeq).Error; err != nil {
		return 0, 0, nil, err
	}
	return count, maxSeq, &row.UpdatedAt, nil
}
