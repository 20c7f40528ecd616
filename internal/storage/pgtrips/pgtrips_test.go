package pgtrips

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/TripFlow/internal/models"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startStorage(t *testing.T) *Storage {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "tripflow_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/tripflow_test?sslmode=disable"
	st, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

func act(uid string, cat models.ActivityCategory) models.Activity {
	return models.Activity{ActivityBase: models.ActivityBase{
		UID:      uid,
		Category: cat,
		Status:   models.StatusCreated,
		Address:  &models.Address{Name: "Depot", City: "Lyon", Country: "FR"},
	}}
}

func TestPGTrips_RepoFlow(t *testing.T) {
	ctx := context.Background()
	st := startStorage(t)

	turnover := 1200.5
	trip := models.RawTrip{
		UID:            "trip-1",
		Status:         "planned",
		Turnover:       &turnover,
		Trucker:        &models.Means{UID: "tr-1", Name: "Jane"},
		OwnedByCompany: 7,
		Activities: []models.Activity{
			act("a0", models.CategoryTripStart),
			act("a1", models.CategoryLoading),
			act("a2", models.CategoryLoading),
			act("a3", models.CategoryUnloading),
			act("a4", models.CategoryTripEnd),
		},
	}
	require.NoError(t, st.SaveTrip(ctx, trip))

	got, err := st.GetTrip(ctx, "trip-1")
	require.NoError(t, err)
	require.Equal(t, "planned", got.Status)
	require.NotNil(t, got.Trucker)
	require.Equal(t, "Jane", got.Trucker.Name)
	require.Nil(t, got.Vehicle)
	require.Equal(t, []string{"a0", "a1", "a2", "a3", "a4"}, uids(got.Activities))
	require.Equal(t, "Lyon", got.Activities[1].Address.City)

	_, err = st.GetTrip(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	// swap a1 and a2 by rewriting the [1,2] span only
	err = st.ReorderActivities(ctx, ReorderUpdate{
		TripUID:      "trip-1",
		ExpectedUIDs: []string{"a0", "a1", "a2", "a3", "a4"},
		OrderedUIDs:  []string{"a0", "a2", "a1", "a3", "a4"},
		MinIndex:     1,
		MaxIndex:     2,
	})
	require.NoError(t, err)

	got, err = st.GetTrip(ctx, "trip-1")
	require.NoError(t, err)
	require.Equal(t, []string{"a0", "a2", "a1", "a3", "a4"}, uids(got.Activities))

	err = st.ReorderActivities(ctx, ReorderUpdate{
		TripUID:      "trip-1",
		ExpectedUIDs: []string{"a0", "a2", "a1", "a3", "a4"},
		OrderedUIDs:  []string{"a0", "zz", "a1", "a3", "a4"},
		MinIndex:     1,
		MaxIndex:     1,
	})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrOrderChanged)

	pair := []models.Activity{act("b1", models.CategoryBreaking), act("r1", models.CategoryResuming)}
	require.NoError(t, st.InsertActivitiesAfter(ctx, "trip-1", 2, pair))

	got, err = st.GetTrip(ctx, "trip-1")
	require.NoError(t, err)
	require.Equal(t, []string{"a0", "a2", "a1", "b1", "r1", "a3", "a4"}, uids(got.Activities))
}

func TestPGTrips_ReorderFromStaleOrderConflicts(t *testing.T) {
	ctx := context.Background()
	st := startStorage(t)

	require.NoError(t, st.SaveTrip(ctx, models.RawTrip{UID: "trip-2", Activities: []models.Activity{
		act("a", models.CategoryLoading),
		act("b", models.CategoryLoading),
		act("c", models.CategoryUnloading),
		act("d", models.CategoryUnloading),
	}}))
	base := []string{"a", "b", "c", "d"}

	// a: 0 -> 2
	require.NoError(t, st.ReorderActivities(ctx, ReorderUpdate{
		TripUID:      "trip-2",
		ExpectedUIDs: base,
		OrderedUIDs:  []string{"b", "c", "a", "d"},
		MinIndex:     0,
		MaxIndex:     2,
	}))

	// d: 3 -> 2, computed from the order before the first move
	err := st.ReorderActivities(ctx, ReorderUpdate{
		TripUID:      "trip-2",
		ExpectedUIDs: base,
		OrderedUIDs:  []string{"a", "b", "d", "c"},
		MinIndex:     2,
		MaxIndex:     3,
	})
	require.ErrorIs(t, err, ErrOrderChanged)

	got, err := st.GetTrip(ctx, "trip-2")
	require.NoError(t, err)
	require.Equal(t, []string{"b", "c", "a", "d"}, uids(got.Activities))

	err = st.ReorderActivities(ctx, ReorderUpdate{
		TripUID:      "missing",
		ExpectedUIDs: base,
		OrderedUIDs:  base,
		MinIndex:     0,
		MaxIndex:     0,
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPGTrips_ProjectionLease(t *testing.T) {
	ctx := context.Background()
	st := startStorage(t)

	require.NoError(t, st.SaveTrip(ctx, models.RawTrip{UID: "t1", Activities: []models.Activity{act("x1", models.CategoryLoading)}}))
	require.NoError(t, st.SaveTrip(ctx, models.RawTrip{UID: "t2", Activities: []models.Activity{act("y1", models.CategoryLoading)}}))

	_, err := st.db.Exec(ctx, `UPDATE trips SET projection_due_at = now() + interval '1 hour' WHERE uid = 't2'`)
	require.NoError(t, err)

	now := time.Now().UTC().Add(time.Second)
	lease := 10 * time.Second
	jobs, err := st.ClaimStaleTrips(ctx, now, 10, lease)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "t1", jobs[0].TripUID)
	require.WithinDuration(t, now.Add(lease), jobs[0].LeaseUntil, time.Millisecond)

	// leased trips are not handed out twice
	again, err := st.ClaimStaleTrips(ctx, now, 10, lease)
	require.NoError(t, err)
	require.Empty(t, again)

	ok, err := st.CompleteProjection(ctx, "t1", jobs[0].LeaseUntil)
	require.NoError(t, err)
	require.True(t, ok)

	// a change during the lease keeps the trip due
	require.NoError(t, st.MarkProjectionStale(ctx, "t1"))
	jobs, err = st.ClaimStaleTrips(ctx, time.Now().UTC().Add(time.Second), 10, lease)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NoError(t, st.MarkProjectionStale(ctx, "t1"))
	ok, err = st.CompleteProjection(ctx, "t1", jobs[0].LeaseUntil)
	require.NoError(t, err)
	require.False(t, ok)

	require.ErrorIs(t, st.MarkProjectionStale(ctx, "nope"), ErrNotFound)
}

func uids(acts []models.Activity) []string {
	out := make([]string, 0, len(acts))
	for _, a := range acts {
		out = append(out, a.UID)
	}
	return out
}
