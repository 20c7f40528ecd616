package engine

import (
	"time"

	"github.com/BearBump/TripFlow/internal/models"
)

type TimingSource string

const (
	TimingReal      TimingSource = "real"
	TimingScheduled TimingSource = "scheduled"
	TimingSlot      TimingSource = "slot"
	TimingNone      TimingSource = "none"
)

// Timing is the single authoritative "when" of an activity.
type Timing struct {
	Start  *time.Time   `json:"start"`
	End    *time.Time   `json:"end"`
	Source TimingSource `json:"source"`
}

// TimingOf picks real times first, then the scheduled range, then the first
// requested slot.
func TimingOf(base models.ActivityBase, firstSlot *models.TimeRange) Timing {
	if base.RealStart != nil || base.RealEnd != nil {
		return Timing{Start: copyTime(base.RealStart), End: copyTime(base.RealEnd), Source: TimingReal}
	}
	if base.ScheduledRange != nil {
		start, end := base.ScheduledRange.Start, base.ScheduledRange.End
		return Timing{Start: &start, End: &end, Source: TimingScheduled}
	}
	if firstSlot != nil {
		start, end := firstSlot.Start, firstSlot.End
		return Timing{Start: &start, End: &end, Source: TimingSlot}
	}
	return Timing{Source: TimingNone}
}

func ActivityTiming(a models.Activity) Timing {
	var slot *models.TimeRange
	if len(a.Slots) > 0 {
		slot = &a.Slots[0]
	}
	return TimingOf(a.ActivityBase, slot)
}

func SimilarActivityTiming(a models.SimilarActivity) Timing {
	var slot *models.TimeRange
	if len(a.Slots) > 0 {
		slot = &a.Slots[0]
	}
	return TimingOf(a.ActivityBase, slot)
}

func ExpandedTiming(a models.SimilarActivityWithTransportData) Timing {
	var slot *models.TimeRange
	if len(a.Slots) > 0 {
		slot = &a.Slots[0].TimeRange
	}
	return TimingOf(a.ActivityBase, slot)
}
