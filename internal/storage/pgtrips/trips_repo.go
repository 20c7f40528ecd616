package pgtrips

import (
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/BearBump/TripFlow/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// ReorderUpdate persists only the changed span of a new activity order.
type ReorderUpdate struct {
	TripUID string
	// ExpectedUIDs is the stored order the move was validated against.
	ExpectedUIDs []string
	OrderedUIDs  []string
	MinIndex     int
	MaxIndex     int
}

// SaveTrip upserts a trip and replaces its activity chain.
func (s *Storage) SaveTrip(ctx context.Context, trip models.RawTrip) error {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	trucker, err := jsonbOrNil(trip.Trucker)
	if err != nil {
		return err
	}
	vehicle, err := jsonbOrNil(trip.Vehicle)
	if err != nil {
		return err
	}
	trailer, err := jsonbOrNil(trip.Trailer)
	if err != nil {
		return err
	}
	child, err := jsonbOrNil(trip.ChildTransport)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
INSERT INTO trips (
  uid, status, turnover, owned_by_company, is_prepared,
  trucker, vehicle, trailer, child_transport,
  projection_due_at, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10,$10)
ON CONFLICT (uid) DO UPDATE SET
  status = EXCLUDED.status,
  turnover = EXCLUDED.turnover,
  owned_by_company = EXCLUDED.owned_by_company,
  is_prepared = EXCLUDED.is_prepared,
  trucker = EXCLUDED.trucker,
  vehicle = EXCLUDED.vehicle,
  trailer = EXCLUDED.trailer,
  child_transport = EXCLUDED.child_transport,
  projection_due_at = EXCLUDED.projection_due_at,
  updated_at = EXCLUDED.updated_at
`, trip.UID, trip.Status, trip.Turnover, trip.OwnedByCompany, trip.IsPrepared,
		trucker, vehicle, trailer, child, now)
	if err != nil {
		return errors.Wrap(err, "upsert trip")
	}

	if _, err := tx.Exec(ctx, `DELETE FROM trip_activities WHERE trip_uid = $1`, trip.UID); err != nil {
		return errors.Wrap(err, "delete activities")
	}
	for i, a := range trip.Activities {
		if err := insertActivity(ctx, tx, trip.UID, i, a); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

func (s *Storage) GetTrip(ctx context.Context, tripUID string) (*models.RawTrip, error) {
	trips, err := s.GetTrips(ctx, []string{tripUID})
	if err != nil {
		return nil, err
	}
	if len(trips) == 0 {
		return nil, ErrNotFound
	}
	return trips[0], nil
}

// GetTrips returns the known trips in the order of uids; unknown uids are skipped.
func (s *Storage) GetTrips(ctx context.Context, uids []string) ([]*models.RawTrip, error) {
	if len(uids) == 0 {
		return []*models.RawTrip{}, nil
	}

	rows, err := s.db.Query(ctx, `
SELECT
  uid, status, turnover, owned_by_company, is_prepared,
  trucker, vehicle, trailer, child_transport
FROM trips
WHERE uid = ANY($1)
`, uids)
	if err != nil {
		return nil, errors.Wrap(err, "select trips")
	}
	defer rows.Close()

	byUID := make(map[string]*models.RawTrip, len(uids))
	for rows.Next() {
		var t models.RawTrip
		var trucker, vehicle, trailer, child []byte
		if err := rows.Scan(
			&t.UID, &t.Status, &t.Turnover, &t.OwnedByCompany, &t.IsPrepared,
			&trucker, &vehicle, &trailer, &child,
		); err != nil {
			return nil, errors.Wrap(err, "scan trip")
		}
		if err := unmarshalJSONB(trucker, &t.Trucker); err != nil {
			return nil, err
		}
		if err := unmarshalJSONB(vehicle, &t.Vehicle); err != nil {
			return nil, err
		}
		if err := unmarshalJSONB(trailer, &t.Trailer); err != nil {
			return nil, err
		}
		if err := unmarshalJSONB(child, &t.ChildTransport); err != nil {
			return nil, err
		}
		t.Activities = []models.Activity{}
		byUID[t.UID] = &t
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}

	actRows, err := s.db.Query(ctx, `
SELECT trip_uid, payload
FROM trip_activities
WHERE trip_uid = ANY($1)
ORDER BY trip_uid, position ASC
`, uids)
	if err != nil {
		return nil, errors.Wrap(err, "select activities")
	}
	defer actRows.Close()

	for actRows.Next() {
		var tripUID string
		var payload []byte
		if err := actRows.Scan(&tripUID, &payload); err != nil {
			return nil, errors.Wrap(err, "scan activity")
		}
		var a models.Activity
		if err := json.Unmarshal(payload, &a); err != nil {
			return nil, errors.Wrap(err, "decode activity")
		}
		if t, ok := byUID[tripUID]; ok {
			t.Activities = append(t.Activities, a)
		}
	}
	if actRows.Err() != nil {
		return nil, errors.Wrap(actRows.Err(), "rows")
	}

	out := make([]*models.RawTrip, 0, len(uids))
	for _, uid := range uids {
		if t, ok := byUID[uid]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// ReorderActivities rewrites positions MinIndex..MaxIndex and marks the
// trip's projections stale in the same transaction. It fails with
// ErrOrderChanged when the stored order is no longer ExpectedUIDs.
func (s *Storage) ReorderActivities(ctx context.Context, upd ReorderUpdate) error {
	if upd.MinIndex < 0 || upd.MaxIndex >= len(upd.OrderedUIDs) || upd.MinIndex > upd.MaxIndex {
		return errors.Errorf("invalid reorder span [%d,%d] for %d activities", upd.MinIndex, upd.MaxIndex, len(upd.OrderedUIDs))
	}
	if len(upd.ExpectedUIDs) != len(upd.OrderedUIDs) {
		return errors.Errorf("expected order has %d activities, new order %d", len(upd.ExpectedUIDs), len(upd.OrderedUIDs))
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockTrip(ctx, tx, upd.TripUID); err != nil {
		return err
	}
	current, err := activityOrder(ctx, tx, upd.TripUID)
	if err != nil {
		return err
	}
	if !slices.Equal(current, upd.ExpectedUIDs) {
		return ErrOrderChanged
	}

	for i := upd.MinIndex; i <= upd.MaxIndex; i++ {
		tag, err := tx.Exec(ctx, `
UPDATE trip_activities
SET position = $3, updated_at = now()
WHERE trip_uid = $1 AND uid = $2
`, upd.TripUID, upd.OrderedUIDs[i], i)
		if err != nil {
			return errors.Wrap(err, "update activity position")
		}
		if tag.RowsAffected() != 1 {
			return errors.Errorf("activity %s does not belong to trip %s", upd.OrderedUIDs[i], upd.TripUID)
		}
	}

	if err := markStale(ctx, tx, upd.TripUID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

// InsertActivitiesAfter shifts everything behind afterPosition and inserts
// the given activities right after it.
func (s *Storage) InsertActivitiesAfter(ctx context.Context, tripUID string, afterPosition int, acts []models.Activity) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := lockTrip(ctx, tx, tripUID); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
UPDATE trip_activities
SET position = position + $3, updated_at = now()
WHERE trip_uid = $1 AND position > $2
`, tripUID, afterPosition, len(acts))
	if err != nil {
		return errors.Wrap(err, "shift activities")
	}
	for i, a := range acts {
		if err := insertActivity(ctx, tx, tripUID, afterPosition+1+i, a); err != nil {
			return err
		}
	}

	if err := markStale(ctx, tx, tripUID); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

func insertActivity(ctx context.Context, tx pgx.Tx, tripUID string, position int, a models.Activity) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return errors.Wrap(err, "encode activity")
	}
	_, err = tx.Exec(ctx, `
INSERT INTO trip_activities (uid, trip_uid, position, payload, updated_at)
VALUES ($1,$2,$3,$4, now())
`, a.UID, tripUID, position, payload)
	return errors.Wrap(err, "insert activity")
}

// lockTrip serializes writers of one trip's activity chain.
func lockTrip(ctx context.Context, tx pgx.Tx, tripUID string) error {
	var uid string
	err := tx.QueryRow(ctx, `SELECT uid FROM trips WHERE uid = $1 FOR UPDATE`, tripUID).Scan(&uid)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return errors.Wrap(err, "lock trip")
}

func activityOrder(ctx context.Context, tx pgx.Tx, tripUID string) ([]string, error) {
	rows, err := tx.Query(ctx, `SELECT uid FROM trip_activities WHERE trip_uid = $1 ORDER BY position`, tripUID)
	if err != nil {
		return nil, errors.Wrap(err, "select activity order")
	}
	uids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "scan activity order")
	}
	return uids, nil
}

func markStale(ctx context.Context, tx pgx.Tx, tripUID string) error {
	tag, err := tx.Exec(ctx, `UPDATE trips SET projection_due_at = now(), updated_at = now() WHERE uid = $1`, tripUID)
	if err != nil {
		return errors.Wrap(err, "mark projection stale")
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func jsonbOrNil[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode jsonb")
	}
	return b, nil
}

func unmarshalJSONB[T any](b []byte, dst **T) error {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return errors.Wrap(err, "decode jsonb")
	}
	*dst = &v
	return nil
}
