// Package engine consolidates the raw activity chain of a trip into
// similarity groups, derives display statuses and decides which edits
// (reorder, break insertion, deletion, trip merge) keep pickup/delivery
// precedence intact.
//
// Every function here is a pure projection: inputs are never mutated and
// the returned slices never alias them.
package engine

import "github.com/BearBump/TripFlow/internal/models"

type DisplayStatus string

const (
	DisplayCancelled  DisplayStatus = "cancelled"
	DisplayDeleted    DisplayStatus = "deleted"
	DisplayDone       DisplayStatus = "done"
	DisplayOnSite     DisplayStatus = "on_site"
	DisplayNotStarted DisplayStatus = "not_started"
)

// StatusSource is implemented by every activity representation.
type StatusSource interface {
	Lifecycle() (models.ActivityStatus, models.CancelledStatus)
	OwningTransports() []models.Transport
}

func DeriveStatus(a StatusSource) DisplayStatus {
	status, cancelled := a.Lifecycle()
	if cancelled != models.NotCancelled {
		// cancelled / deleted map 1:1 onto DisplayCancelled / DisplayDeleted
		return DisplayStatus(cancelled)
	}
	if IsComplete(a) {
		return DisplayDone
	}
	if status == models.StatusOnSite || status == models.StatusActivityInProgress {
		return DisplayOnSite
	}
	return DisplayNotStarted
}

// IsComplete reports whether the activity itself is finished or every owning
// transport is done. An activity without transports is never complete through
// the transport branch.
func IsComplete(a StatusSource) bool {
	status, _ := a.Lifecycle()
	if status == models.StatusActivityDone || status == models.StatusDeparted {
		return true
	}
	transports := a.OwningTransports()
	if len(transports) == 0 {
		return false
	}
	for _, t := range transports {
		if t.GlobalStatus != models.TransportStatusDone {
			return false
		}
	}
	return true
}
