package trips

import (
	"fmt"

	"github.com/BearBump/TripFlow/internal/engine"
	"github.com/pkg/errors"
)

var (
	ErrTripNotFound     = errors.New("trip not found")
	ErrActivityNotFound = errors.New("activity not found")
	ErrIllegalReorder   = errors.New("illegal reorder")
	ErrConcurrentChange = errors.New("trip changed concurrently, reload and retry")
	ErrBreakNotAllowed  = errors.New("break not allowed here")
	ErrRateLimited      = errors.New("rate limited")
	ErrInvalidArgument  = errors.New("invalid argument")
)

// ReorderRejectedError carries the verdict of a refused move.
type ReorderRejectedError struct {
	Verdict engine.ReorderVerdict
}

func (e *ReorderRejectedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrIllegalReorder, e.Verdict.Message())
}

func (e *ReorderRejectedError) Unwrap() error {
	return ErrIllegalReorder
}
