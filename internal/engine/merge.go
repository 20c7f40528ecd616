package engine

import (
	"strings"
	"time"

	"github.com/BearBump/TripFlow/internal/models"
)

const (
	mergedUIDSeparator       = "/"
	mergedReferenceSeparator = " ; "
)

// mergedBasics is the part of a merged entity both builders share.
type mergedBasics struct {
	base        models.ActivityBase
	transports  []models.Transport
	similarUIDs []string
}

// mergeBasics aggregates a non-empty group. Stop-level fields come from the
// last member, whose distance/time to next is the one valid for the group.
func mergeBasics(group []models.Activity) mergedBasics {
	if len(group) == 0 {
		panic("engine: cannot merge an empty activity group")
	}
	last := group[len(group)-1]

	b := mergedBasics{
		base: models.ActivityBase{
			Category:                   last.Category,
			Address:                    copyAddress(last.Address),
			Status:                     last.Status,
			CancelledStatus:            last.CancelledStatus,
			EstimatedDistanceToNext:    copyFloat(last.EstimatedDistanceToNext),
			EstimatedDrivingTimeToNext: copyFloat(last.EstimatedDrivingTimeToNext),
		},
		transports:  make([]models.Transport, 0, len(group)),
		similarUIDs: make([]string, 0, len(group)),
	}

	var refs []string
	for _, a := range group {
		b.similarUIDs = append(b.similarUIDs, a.UID)
		if a.Transport != nil {
			b.transports = append(b.transports, *a.Transport)
		}
		b.base.IsBookingNeeded = b.base.IsBookingNeeded || a.IsBookingNeeded
		b.base.LockedRequestedTimes = b.base.LockedRequestedTimes || a.LockedRequestedTimes
		b.base.RealStart = minTime(b.base.RealStart, a.RealStart)
		b.base.RealEnd = maxTime(b.base.RealEnd, a.RealEnd)
		if a.ScheduledRange != nil {
			if b.base.ScheduledRange == nil {
				r := *a.ScheduledRange
				b.base.ScheduledRange = &r
			} else {
				if a.ScheduledRange.Start.Before(b.base.ScheduledRange.Start) {
					b.base.ScheduledRange.Start = a.ScheduledRange.Start
				}
				if a.ScheduledRange.End.After(b.base.ScheduledRange.End) {
					b.base.ScheduledRange.End = a.ScheduledRange.End
				}
			}
		}
		if a.Reference != "" {
			refs = append(refs, a.Reference)
		}
	}
	b.base.UID = strings.Join(b.similarUIDs, mergedUIDSeparator)
	b.base.Reference = strings.Join(refs, mergedReferenceSeparator)
	return b
}

// Collapse turns every group into exactly one entity.
func Collapse(groups [][]models.Activity) []models.SimilarActivity {
	out := make([]models.SimilarActivity, 0, len(groups))
	for _, g := range groups {
		if len(g) == 1 {
			out = append(out, collapseSingle(g[0]))
			continue
		}
		out = append(out, collapseGroup(g))
	}
	return out
}

func collapseSingle(a models.Activity) models.SimilarActivity {
	return models.SimilarActivity{
		ActivityBase:   copyBase(a.ActivityBase),
		Slots:          append([]models.TimeRange{}, a.Slots...),
		DeliveriesFrom: append([]models.Delivery{}, a.DeliveriesFrom...),
		DeliveriesTo:   append([]models.Delivery{}, a.DeliveriesTo...),
		Transports:     transportsOf(a),
		SimilarUIDs:    []string{},
		FakeMerged:     false,
	}
}

func collapseGroup(group []models.Activity) models.SimilarActivity {
	b := mergeBasics(group)
	out := models.SimilarActivity{
		ActivityBase:   b.base,
		Slots:          []models.TimeRange{},
		DeliveriesFrom: []models.Delivery{},
		DeliveriesTo:   []models.Delivery{},
		Transports:     b.transports,
		SimilarUIDs:    b.similarUIDs,
		FakeMerged:     true,
	}
	for _, a := range group {
		out.DeliveriesFrom = append(out.DeliveriesFrom, a.DeliveriesFrom...)
		out.DeliveriesTo = append(out.DeliveriesTo, a.DeliveriesTo...)
		out.Slots = append(out.Slots, a.Slots...)
	}
	return out
}

// Expand keeps every activity and puts a synthetic header ahead of each
// multi-member group. Header entries are tagged with the member transport
// they came from; members carry the full group uid list.
func Expand(groups [][]models.Activity) []models.SimilarActivityWithTransportData {
	out := make([]models.SimilarActivityWithTransportData, 0, len(groups))
	for _, g := range groups {
		if len(g) == 1 {
			out = append(out, expandMember(g[0], []string{}))
			continue
		}
		header := expandHeader(g)
		out = append(out, header)
		for _, a := range g {
			out = append(out, expandMember(a, append([]string{}, header.SimilarUIDs...)))
		}
	}
	return out
}

func expandHeader(group []models.Activity) models.SimilarActivityWithTransportData {
	b := mergeBasics(group)
	out := models.SimilarActivityWithTransportData{
		ActivityBase:   b.base,
		Slots:          []models.TaggedSlot{},
		DeliveriesFrom: []models.TaggedDelivery{},
		DeliveriesTo:   []models.TaggedDelivery{},
		Transports:     b.transports,
		SimilarUIDs:    b.similarUIDs,
		FakeMerged:     true,
	}
	for _, a := range group {
		ref := refOf(a.Transport)
		out.DeliveriesFrom = appendTaggedDeliveries(out.DeliveriesFrom, a.DeliveriesFrom, ref)
		out.DeliveriesTo = appendTaggedDeliveries(out.DeliveriesTo, a.DeliveriesTo, ref)
		for _, s := range a.Slots {
			out.Slots = append(out.Slots, models.TaggedSlot{TimeRange: s, Origin: copyRef(ref)})
		}
	}
	return out
}

func expandMember(a models.Activity, similarUIDs []string) models.SimilarActivityWithTransportData {
	return models.SimilarActivityWithTransportData{
		ActivityBase:   copyBase(a.ActivityBase),
		Slots:          appendTaggedSlots(nil, a.Slots, nil),
		DeliveriesFrom: appendTaggedDeliveries(nil, a.DeliveriesFrom, nil),
		DeliveriesTo:   appendTaggedDeliveries(nil, a.DeliveriesTo, nil),
		Transports:     transportsOf(a),
		SimilarUIDs:    similarUIDs,
		FakeMerged:     false,
	}
}

func appendTaggedDeliveries(dst []models.TaggedDelivery, src []models.Delivery, ref *models.TransportRef) []models.TaggedDelivery {
	if dst == nil {
		dst = make([]models.TaggedDelivery, 0, len(src))
	}
	for _, d := range src {
		dst = append(dst, models.TaggedDelivery{Delivery: d, Origin: copyRef(ref)})
	}
	return dst
}

func appendTaggedSlots(dst []models.TaggedSlot, src []models.TimeRange, ref *models.TransportRef) []models.TaggedSlot {
	if dst == nil {
		dst = make([]models.TaggedSlot, 0, len(src))
	}
	for _, s := range src {
		dst = append(dst, models.TaggedSlot{TimeRange: s, Origin: copyRef(ref)})
	}
	return dst
}

func refOf(t *models.Transport) *models.TransportRef {
	if t == nil {
		return nil
	}
	return &models.TransportRef{TransportUID: t.UID, TransportID: t.SequentialID}
}

func copyRef(r *models.TransportRef) *models.TransportRef {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func transportsOf(a models.Activity) []models.Transport {
	if a.Transport == nil {
		return []models.Transport{}
	}
	return []models.Transport{*a.Transport}
}

func copyBase(b models.ActivityBase) models.ActivityBase {
	b.Address = copyAddress(b.Address)
	b.RealStart = copyTime(b.RealStart)
	b.RealEnd = copyTime(b.RealEnd)
	if b.ScheduledRange != nil {
		r := *b.ScheduledRange
		b.ScheduledRange = &r
	}
	b.EstimatedDistanceToNext = copyFloat(b.EstimatedDistanceToNext)
	b.EstimatedDrivingTimeToNext = copyFloat(b.EstimatedDrivingTimeToNext)
	return b
}

func copyAddress(a *models.Address) *models.Address {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	c := *f
	return &c
}

func minTime(cur, next *time.Time) *time.Time {
	if next == nil {
		return cur
	}
	if cur == nil || next.Before(*cur) {
		return copyTime(next)
	}
	return cur
}

func maxTime(cur, next *time.Time) *time.Time {
	if next == nil {
		return cur
	}
	if cur == nil || next.After(*cur) {
		return copyTime(next)
	}
	return cur
}
