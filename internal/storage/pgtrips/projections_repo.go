package pgtrips

import (
	"context"
	"time"

	"github.com/BearBump/TripFlow/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// MarkProjectionStale schedules the trip for re-projection right away.
func (s *Storage) MarkProjectionStale(ctx context.Context, tripUID string) error {
	tag, err := s.db.Exec(ctx, `
UPDATE trips
SET projection_due_at = now(), projection_fail_count = 0, projection_last_error = NULL, updated_at = now()
WHERE uid = $1
`, tripUID)
	if err != nil {
		return errors.Wrap(err, "mark projection stale")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimStaleTrips picks a batch of trips whose projections are due and leases
// them so concurrent workers skip them. Uses SELECT ... FOR UPDATE SKIP LOCKED.
func (s *Storage) ClaimStaleTrips(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.ProjectionJob, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
SELECT uid, projection_fail_count
FROM trips
WHERE projection_due_at IS NOT NULL
  AND projection_due_at <= $1
ORDER BY projection_due_at ASC
LIMIT $2
FOR UPDATE SKIP LOCKED
`, now.UTC(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "select stale trips")
	}
	defer rows.Close()

	var picked []*models.ProjectionJob
	for rows.Next() {
		var j models.ProjectionJob
		if err := rows.Scan(&j.TripUID, &j.FailCount); err != nil {
			return nil, errors.Wrap(err, "scan stale trip")
		}
		picked = append(picked, &j)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}

	// postgres keeps microseconds; the lease is compared for equality later
	leaseUntil := now.UTC().Add(lease).Truncate(time.Microsecond)
	for _, j := range picked {
		_, err := tx.Exec(ctx, `UPDATE trips SET projection_due_at = $2 WHERE uid = $1`, j.TripUID, leaseUntil)
		if err != nil {
			return nil, errors.Wrap(err, "lease trip")
		}
		j.LeaseUntil = leaseUntil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return picked, nil
}

// CompleteProjection clears the due mark unless the trip changed again while
// the lease was held. Returns false in that case.
func (s *Storage) CompleteProjection(ctx context.Context, tripUID string, leaseUntil time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE trips
SET projection_due_at = NULL, projection_fail_count = 0, projection_last_error = NULL
WHERE uid = $1 AND projection_due_at = $2
`, tripUID, leaseUntil.UTC())
	if err != nil {
		return false, errors.Wrap(err, "complete projection")
	}
	return tag.RowsAffected() == 1, nil
}

// FailProjection records the error and reschedules the trip at nextAt.
func (s *Storage) FailProjection(ctx context.Context, tripUID, errMsg string, nextAt, leaseUntil time.Time) error {
	_, err := s.db.Exec(ctx, `
UPDATE trips
SET projection_due_at = $3,
    projection_fail_count = projection_fail_count + 1,
    projection_last_error = $2
WHERE uid = $1 AND projection_due_at = $4
`, tripUID, errMsg, nextAt.UTC(), leaseUntil.UTC())
	return errors.Wrap(err, "fail projection")
}
