package engine

import (
	"testing"

	"github.com/BearBump/TripFlow/internal/models"
	"github.com/stretchr/testify/require"
)

func TestAreSimilar(t *testing.T) {
	base := activity("a", models.CategoryLoading, transport(1), "Lyon")

	same := activity("b", models.CategoryLoading, transport(2), "Lyon")
	require.True(t, AreSimilar(base, same))

	otherCategory := activity("b", models.CategoryUnloading, transport(1), "Lyon")
	require.False(t, AreSimilar(base, otherCategory))

	otherStatus := same
	otherStatus.Status = models.StatusOnSite
	require.False(t, AreSimilar(base, otherStatus))

	otherPostcode := activity("b", models.CategoryLoading, transport(1), "Lyon")
	otherPostcode.Address.Postcode = "69002"
	require.False(t, AreSimilar(base, otherPostcode))

	otherCompany := activity("b", models.CategoryLoading, transport(1), "Lyon")
	otherCompany.Address.Company = "ACME"
	require.True(t, AreSimilar(base, otherCompany))

	noAddress := activity("b", models.CategoryLoading, transport(1), "")
	require.False(t, AreSimilar(base, noAddress))
	require.False(t, AreSimilar(noAddress, noAddress))

	cancelled := same
	cancelled.CancelledStatus = models.Cancelled
	require.False(t, AreSimilar(base, cancelled))
	require.False(t, AreSimilar(cancelled, base))
}

func TestGroupConsecutive_partition(t *testing.T) {
	in := []models.Activity{
		activity("start", models.CategoryTripStart, nil, ""),
		activity("l1", models.CategoryLoading, transport(1), "Lyon"),
		activity("l2", models.CategoryLoading, transport(2), "Lyon"),
		activity("l3", models.CategoryLoading, transport(3), "Lyon"),
		activity("u1", models.CategoryUnloading, transport(1), "Paris"),
		activity("l4", models.CategoryLoading, transport(4), "Lyon"),
		activity("end", models.CategoryTripEnd, nil, ""),
	}

	groups := GroupConsecutive(in)
	require.Len(t, groups, 5)
	require.Len(t, groups[1], 3)

	var flat []models.Activity
	for _, g := range groups {
		require.NotEmpty(t, g)
		flat = append(flat, g...)
	}
	require.Equal(t, in, flat)
}

func TestGroupConsecutive_cancelledBreaksRun(t *testing.T) {
	cancelled := activity("l2", models.CategoryLoading, transport(2), "Lyon")
	cancelled.CancelledStatus = models.Deleted

	groups := GroupConsecutive([]models.Activity{
		activity("l1", models.CategoryLoading, transport(1), "Lyon"),
		cancelled,
		activity("l3", models.CategoryLoading, transport(3), "Lyon"),
	})
	require.Len(t, groups, 3)
}

func TestGroupConsecutive_boundariesStayAlone(t *testing.T) {
	s1 := activity("s1", models.CategoryTripStart, nil, "Lyon")
	s2 := activity("s2", models.CategoryTripStart, nil, "Lyon")
	require.True(t, AreSimilar(s1, s2))

	groups := GroupConsecutive([]models.Activity{s1, s2})
	require.Len(t, groups, 2)
}

func TestGroupConsecutive_empty(t *testing.T) {
	require.Empty(t, GroupConsecutive(nil))
}
