package models

import "time"

// ProjectionJob is a trip whose cached projections must be rebuilt.
type ProjectionJob struct {
	TripUID    string
	FailCount  int32
	LeaseUntil time.Time
}
