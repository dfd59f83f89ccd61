// Package services – IdempotencyStore
//
// IdempotencyStore remembers which record a keyed create produced so a
// retried POST is answered with the original record. Expired keys are
// purged by a cron entry.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/scan-pipeline/internal/repo"
)

// IdempotencyStore is a thin service over the idempotency table.
type IdempotencyStore struct {
	DB  *gorm.DB
	TTL time.Duration
}

// NewIdempotencyStore returns a store keeping keys for ttl.
func NewIdempotencyStore(db *gorm.DB, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{DB: db, TTL: ttl}
}

// Lookup returns the record id and status stored for the key, or found=false.
func (s *IdempotencyStore) Lookup(ctx context.Context, clientID, collection, key string, now time.Time) (recordID string, status int, found bool, err error) {
	rec, err := repo.GetIdempotency(ctx, s.DB, clientID, collection, key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, err
	}
	return rec.RecordID, rec.Status, true, nil
}

// Exists adapts Lookup to middleware.IdempotencyLookup.
func (s *IdempotencyStore) Exists(ctx context.Context, clientID, collection, key string, now time.Time) (bool, error) {
	_, _, found, err := s.Lookup(ctx, clientID, collection, key, now)
	return found, err
}

// Save records that key produced recordID. A concurrent save of the same key
// returns ErrConflict.
func (s *IdempotencyStore) Save(ctx context.Context, clientID, collection, key, recordID string, status int) error {
	_, err := repo.CreateIdempotency(ctx, s.DB, clientID, collection, key, recordID, status, s.TTL)
	return mapRepoErr(err)
}

// Purge deletes keys that expired at or before now.
func (s *IdempotencyStore) Purge(ctx context.Context, now time.Time) (int64, error) {
	return repo.PurgeExpiredIdempotency(ctx, s.DB, now)
}

// ScheduleIdempotencyPurge registers a cron entry on c that purges expired keys.
func ScheduleIdempotencyPurge(c *cron.Cron, s *IdempotencyStore, spec string, log zerolog.Logger) (cron.EntryID, error) {
	return c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n, err := s.Purge(ctx, time.Now().UTC())
		switch {
		case err != nil:
			log.Warn().Err(err).Str("component", "idempotency").Msg("purge failed")
		case n > 0:
			log.Info().Int64("removed", n).Str("component", "idempotency").Msg("purged expired idempotency keys")
		}
	})
}
