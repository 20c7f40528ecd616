package messages

import (
	"time"

	"github.com/BearBump/TripFlow/internal/models"
)

// TripUpdated arrives from the upstream planning system. Trip is optional:
// when absent, only the cached projections are invalidated.
type TripUpdated struct {
	TripUID   string          `json:"trip_uid"`
	UpdatedAt time.Time       `json:"updated_at"`
	Trip      *models.RawTrip `json:"trip,omitempty"`
}

type ChangeKind string

const (
	ChangeReordered     ChangeKind = "reordered"
	ChangeBreakInserted ChangeKind = "break_inserted"
)

// TripActivitiesChanged is published after a committed reorder or break insertion.
type TripActivitiesChanged struct {
	TripUID     string     `json:"trip_uid"`
	Kind        ChangeKind `json:"kind"`
	OrderedUIDs []string   `json:"ordered_uids"`
	MovedUIDs   []string   `json:"moved_uids,omitempty"`
	MinIndex    int        `json:"min_index"`
	MaxIndex    int        `json:"max_index"`
	TargetIndex int        `json:"target_index"`
	At          time.Time  `json:"at"`
}
