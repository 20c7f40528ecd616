package engine

import (
	"testing"

	"github.com/BearBump/TripFlow/internal/models"
	"github.com/stretchr/testify/require"
)

func tripOf(uid string, acts ...models.Activity) models.RawTrip {
	return models.RawTrip{UID: uid, Activities: acts}
}

func TestValidateTripsMerge(t *testing.T) {
	roundLoading := activity("l", models.CategoryLoading, transport(1), "Lyon")
	roundLoading.DeliveriesFrom = []models.Delivery{{UID: "d", MultipleRounds: true}}
	round := tripOf("round", roundLoading)

	rentalLoading := activity("l", models.CategoryLoading, transport(2), "Lyon")
	rentalLoading.DeliveriesFrom = []models.Delivery{{UID: "d", PlannedLoads: []models.Load{{Category: models.LoadCategoryRental}}}}
	rental := tripOf("rental", activity("start", models.CategoryTripStart, nil, ""), rentalLoading)

	mc := transport(3)
	mc.IsMultipleCompartments = true
	multi := tripOf("multi", activity("l", models.CategoryLoading, mc, "Lyon"))

	bp := transport(4)
	bp.BusinessPrivacy = true
	private := tripOf("private", activity("u", models.CategoryUnloading, bp, "Paris"))

	ok1 := tripOf("ok1", activity("l", models.CategoryLoading, transport(5), "Lyon"))
	ok2 := tripOf("ok2", activity("l", models.CategoryLoading, transport(6), "Nice"))

	res := ValidateTripsMerge([]models.RawTrip{ok1, round, rental, multi, ok2, private})

	require.Len(t, res.ValidTrips, 2)
	require.Equal(t, "ok1", res.ValidTrips[0].UID)
	require.Equal(t, "ok2", res.ValidTrips[1].UID)

	require.Len(t, res.InvalidTripsInfo, 4)
	want := []struct {
		uid    string
		reason MergeRejection
	}{
		{"round", RejectRound},
		{"rental", RejectRental},
		{"multi", RejectMultiCompartments},
		{"private", RejectBusinessPrivacy},
	}
	for i, w := range want {
		require.Equal(t, w.uid, res.InvalidTripsInfo[i].Trip.UID)
		require.Equal(t, w.reason, res.InvalidTripsInfo[i].Reason)
	}
}

func TestValidateTripsMerge_rentalOnlyOnFirstRealActivity(t *testing.T) {
	later := activity("l2", models.CategoryLoading, transport(2), "Paris")
	later.DeliveriesFrom = []models.Delivery{{PlannedLoads: []models.Load{{Category: models.LoadCategoryRental}}}}

	res := ValidateTripsMerge([]models.RawTrip{
		tripOf("t", activity("l1", models.CategoryLoading, transport(1), "Lyon"), later),
	})
	require.Len(t, res.ValidTrips, 1)
	require.Empty(t, res.InvalidTripsInfo)
}

func TestValidateTripsMerge_empty(t *testing.T) {
	res := ValidateTripsMerge(nil)
	require.NotNil(t, res.ValidTrips)
	require.NotNil(t, res.InvalidTripsInfo)
	require.Empty(t, res.ValidTrips)
}
