package engine

import (
	"testing"

	"github.com/BearBump/TripFlow/internal/models"
	"github.com/stretchr/testify/require"
)

func TestActivityTiming_priority(t *testing.T) {
	a := activity("a", models.CategoryLoading, transport(1), "Lyon")
	require.Equal(t, TimingNone, ActivityTiming(a).Source)

	a.Slots = []models.TimeRange{
		{Start: *at("2023-04-18T06:00:00Z"), End: *at("2023-04-18T07:00:00Z")},
		{Start: *at("2023-04-18T09:00:00Z"), End: *at("2023-04-18T10:00:00Z")},
	}
	tm := ActivityTiming(a)
	require.Equal(t, TimingSlot, tm.Source)
	require.Equal(t, *at("2023-04-18T06:00:00Z"), *tm.Start)

	a.ScheduledRange = &models.TimeRange{Start: *at("2023-04-18T08:00:00Z"), End: *at("2023-04-18T08:30:00Z")}
	tm = ActivityTiming(a)
	require.Equal(t, TimingScheduled, tm.Source)
	require.Equal(t, *at("2023-04-18T08:30:00Z"), *tm.End)

	a.RealStart = at("2023-04-18T08:10:00Z")
	tm = ActivityTiming(a)
	require.Equal(t, TimingReal, tm.Source)
	require.Equal(t, *at("2023-04-18T08:10:00Z"), *tm.Start)
	require.Nil(t, tm.End)
}

func TestExpandedTiming_headerUsesMergedTimes(t *testing.T) {
	g := twoLoadingsAtLyon()
	g[0].RealStart = at("2023-04-18T08:00:00Z")
	g[1].RealStart = at("2023-04-18T07:00:00Z")

	out := Expand([][]models.Activity{g})
	tm := ExpandedTiming(out[0])
	require.Equal(t, TimingReal, tm.Source)
	require.Equal(t, *at("2023-04-18T07:00:00Z"), *tm.Start)

	compact := Collapse([][]models.Activity{g})
	require.Equal(t, TimingReal, SimilarActivityTiming(compact[0]).Source)
}
