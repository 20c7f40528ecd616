package pgtrips

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS trips (
  uid TEXT PRIMARY KEY,
  status TEXT NOT NULL DEFAULT '',
  turnover DOUBLE PRECISION NULL,
  owned_by_company BIGINT NOT NULL DEFAULT 0,
  is_prepared BOOLEAN NOT NULL DEFAULT FALSE,
  trucker JSONB NULL,
  vehicle JSONB NULL,
  trailer JSONB NULL,
  child_transport JSONB NULL,
  projection_due_at TIMESTAMPTZ NULL,
  projection_fail_count INT NOT NULL DEFAULT 0,
  projection_last_error TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_trips_projection_due_at ON trips(projection_due_at) WHERE projection_due_at IS NOT NULL`,
		`
CREATE TABLE IF NOT EXISTS trip_activities (
  uid TEXT PRIMARY KEY,
  trip_uid TEXT NOT NULL REFERENCES trips(uid) ON DELETE CASCADE,
  position INT NOT NULL,
  payload JSONB NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		// No unique (trip_uid, position): range updates shuffle positions row by row.
		`CREATE INDEX IF NOT EXISTS idx_trip_activities_trip_position ON trip_activities(trip_uid, position)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
