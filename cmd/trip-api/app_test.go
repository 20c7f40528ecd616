package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BearBump/TripFlow/internal/broker/messages"
	"github.com/BearBump/TripFlow/internal/models"
	"github.com/BearBump/TripFlow/internal/services/trips"
	"github.com/BearBump/TripFlow/internal/storage/pgtrips"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	trip  *models.RawTrip
	stale []string
}

func (r *fakeRepo) GetTrip(ctx context.Context, tripUID string) (*models.RawTrip, error) {
	if r.trip == nil || r.trip.UID != tripUID {
		return nil, pgtrips.ErrNotFound
	}
	return r.trip, nil
}
func (r *fakeRepo) GetTrips(ctx context.Context, uids []string) ([]*models.RawTrip, error) {
	return []*models.RawTrip{}, nil
}
func (r *fakeRepo) SaveTrip(ctx context.Context, trip models.RawTrip) error { return nil }
func (r *fakeRepo) ReorderActivities(ctx context.Context, upd pgtrips.ReorderUpdate) error {
	return nil
}
func (r *fakeRepo) InsertActivitiesAfter(ctx context.Context, tripUID string, afterPosition int, acts []models.Activity) error {
	return nil
}
func (r *fakeRepo) MarkProjectionStale(ctx context.Context, tripUID string) error {
	r.stale = append(r.stale, tripUID)
	return nil
}

type fakeConsumer struct{}

func (c fakeConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	<-ctx.Done()
	return ctx.Err()
}

type stoppedConsumer struct{ err error }

func (c stoppedConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	return c.err
}

func newTestService(repo *fakeRepo) *trips.Service {
	return trips.New(repo, nil, nil, nil, trips.Options{})
}

func writeSwagger(t *testing.T) string {
	t.Helper()
	sw := filepath.Join(t.TempDir(), "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))
	return sw
}

func TestRunTripAPI_ServesSwaggerAndTrips(t *testing.T) {
	repo := &fakeRepo{trip: &models.RawTrip{UID: "trip-1", Activities: []models.Activity{
		{ActivityBase: models.ActivityBase{UID: "s", Category: models.CategoryTripStart}},
	}}}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := tripAPIOpts{
		httpAddr:      "127.0.0.1:0",
		swaggerPath:   writeSwagger(t),
		topic:         "trip.updated",
		consumerGroup: "g",
		onListen:      func(httpAddr string) { addrCh <- httpAddr },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runTripAPI(ctx, opts, newTestService(repo), fakeConsumer{})
	}()
	base := "http://" + <-addrCh

	require.Eventually(t, func() bool {
		r, err := http.Get(base + "/healthz")
		if err != nil {
			return false
		}
		r.Body.Close()
		return r.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(base + "/swagger.json")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `"swagger"`)

	resp, err = http.Get(base + "/trips/trip-1/compact")
	require.NoError(t, err)
	var compact models.CompactTrip
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&compact))
	resp.Body.Close()
	require.Equal(t, "trip-1", compact.UID)
	require.Len(t, compact.Activities, 1)

	resp, err = http.Get(base + "/trips/missing/compact")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
}

func TestRunTripAPI_MissingSwagger(t *testing.T) {
	err := runTripAPI(context.Background(), tripAPIOpts{httpAddr: "127.0.0.1:0"}, newTestService(&fakeRepo{}), fakeConsumer{})
	require.Error(t, err)

	err = runTripAPI(context.Background(), tripAPIOpts{httpAddr: "127.0.0.1:0", swaggerPath: "/nope/swagger.json"}, newTestService(&fakeRepo{}), fakeConsumer{})
	require.Error(t, err)
}

func TestRunTripAPI_ConsumerStopFailsProcess(t *testing.T) {
	want := errors.New("handle message at offset 3: pg down")
	opts := tripAPIOpts{
		httpAddr:    "127.0.0.1:0",
		swaggerPath: writeSwagger(t),
		topic:       "trip.updated",
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runTripAPI(context.Background(), opts, newTestService(&fakeRepo{}), stoppedConsumer{err: want})
	}()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, want)
		require.Contains(t, err.Error(), "consume trip.updated")
	case <-time.After(3 * time.Second):
		t.Fatal("api kept running after the consumer stopped")
	}
}

type failingService struct {
	tripService
	err error
}

func (s failingService) ApplyTripUpdated(ctx context.Context, msg messages.TripUpdated) error {
	return s.err
}

func TestTripUpdatedHandler(t *testing.T) {
	repo := &fakeRepo{}
	h := tripUpdatedHandler(context.Background(), newTestService(repo))

	require.NoError(t, h([]byte("trip-1"), []byte(`{"trip_uid":"trip-1"}`)))
	require.Equal(t, []string{"trip-1"}, repo.stale)

	// poison messages are skipped
	require.NoError(t, h(nil, []byte(`{not json`)))
	require.NoError(t, h(nil, []byte(`{}`)))

	// transient failures go back to the consumer for retry
	want := errors.New("pg down")
	h = tripUpdatedHandler(context.Background(), failingService{err: want})
	require.ErrorIs(t, h(nil, []byte(`{"trip_uid":"trip-1"}`)), want)
}
