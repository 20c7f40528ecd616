package engine

import (
	"testing"

	"github.com/BearBump/TripFlow/internal/models"
	"github.com/stretchr/testify/require"
)

func TestCompactAndExpandTrip(t *testing.T) {
	turnover := 420.0
	trip := models.RawTrip{
		UID:        "trip-1",
		Status:     "planned",
		Turnover:   &turnover,
		Trucker:    &models.Means{UID: "trucker-1", Name: "Jo"},
		IsPrepared: true,
		Activities: []models.Activity{
			activity("l1", models.CategoryLoading, transport(1), "Lyon"),
			activity("l2", models.CategoryLoading, transport(2), "Lyon"),
			activity("u1", models.CategoryUnloading, transport(1), "Paris"),
		},
	}

	compact := CompactTrip(trip)
	require.Equal(t, "trip-1", compact.UID)
	require.Equal(t, "planned", compact.Status)
	require.True(t, compact.IsPrepared)
	require.Equal(t, turnover, *compact.Turnover)
	require.Len(t, compact.Activities, 2)

	compact.Trucker.Name = "changed"
	require.Equal(t, "Jo", trip.Trucker.Name)

	full := ExpandTrip(trip)
	require.Len(t, full.Activities, 4)
	require.Equal(t, "trip-1", full.UID)
}
