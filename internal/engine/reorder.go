package engine

import "github.com/BearBump/TripFlow/internal/models"

type ReorderViolation string

const (
	NoViolation                     ReorderViolation = ""
	ViolationOutOfRange             ReorderViolation = "out_of_range"
	ViolationFixedBoundary          ReorderViolation = "fixed_boundary"
	ViolationAfterTripEnd           ReorderViolation = "after_trip_end"
	ViolationBeforeTripStart        ReorderViolation = "before_trip_start"
	ViolationLoadingAfterUnloading  ReorderViolation = "loading_after_unloading"
	ViolationUnloadingBeforeLoading ReorderViolation = "unloading_before_loading"
	ViolationBreakInterleaved       ReorderViolation = "break_interleaved"
	ViolationCrossesBreak           ReorderViolation = "crosses_break"
)

var violationMessages = map[ReorderViolation]string{
	ViolationOutOfRange:             "activity position is out of range",
	ViolationFixedBoundary:          "trip start and trip end cannot be moved",
	ViolationAfterTripEnd:           "cannot move activity after trip end",
	ViolationBeforeTripStart:        "cannot move activity before trip start",
	ViolationLoadingAfterUnloading:  "cannot move a loading after an unloading of the same transport",
	ViolationUnloadingBeforeLoading: "cannot move an unloading before a loading of the same transport",
	ViolationBreakInterleaved:       "a break or resume cannot be moved across other activities",
	ViolationCrossesBreak:           "cannot move a loading or unloading across a break",
}

// ReorderVerdict is the outcome of ValidateReorder. A legal verdict has no
// violation; WithinGroup marks a group header dropped inside its own group,
// which callers accept without committing anything.
type ReorderVerdict struct {
	Violation   ReorderViolation `json:"violation,omitempty"`
	WithinGroup bool             `json:"within_group,omitempty"`
}

func (v ReorderVerdict) Legal() bool {
	return v.Violation == NoViolation
}

func (v ReorderVerdict) Message() string {
	return violationMessages[v.Violation]
}

// ValidateReorder decides whether moving the activity at source so that it
// ends up at destination keeps loading/unloading precedence per transport
// and respects trip boundaries and breaks. Both indexes address the
// expanded list; the activities passed over are (source, destination] when
// moving down and [destination, source) when moving up.
func ValidateReorder(activities []models.SimilarActivityWithTransportData, source, destination int) ReorderVerdict {
	n := len(activities)
	if source < 0 || source >= n || destination < 0 || destination >= n {
		return ReorderVerdict{Violation: ViolationOutOfRange}
	}
	if source == destination {
		return ReorderVerdict{}
	}
	moved := activities[source]
	if moved.Category == models.CategoryTripStart || moved.Category == models.CategoryTripEnd {
		return ReorderVerdict{Violation: ViolationFixedBoundary}
	}

	downward := destination > source
	var passed []models.SimilarActivityWithTransportData
	if downward {
		if moved.FakeMerged && destination-source <= len(moved.SimilarUIDs) {
			return ReorderVerdict{WithinGroup: true}
		}
		passed = activities[source+1 : destination+1]
		for _, p := range passed {
			if p.Category == models.CategoryTripEnd {
				return ReorderVerdict{Violation: ViolationAfterTripEnd}
			}
		}
	} else {
		passed = activities[destination:source]
		for _, p := range passed {
			if p.Category == models.CategoryTripStart {
				return ReorderVerdict{Violation: ViolationBeforeTripStart}
			}
		}
	}

	relevant := relevantPassed(moved, passed)

	switch moved.Category {
	case models.CategoryLoading:
		if downward && containsCategory(relevant, models.CategoryUnloading) {
			return ReorderVerdict{Violation: ViolationLoadingAfterUnloading}
		}
	case models.CategoryUnloading:
		if !downward && containsCategory(relevant, models.CategoryLoading) {
			return ReorderVerdict{Violation: ViolationUnloadingBeforeLoading}
		}
	case models.CategoryBreaking, models.CategoryResuming:
		if len(relevant) > 0 {
			return ReorderVerdict{Violation: ViolationBreakInterleaved}
		}
	}

	if moved.Category == models.CategoryLoading || moved.Category == models.CategoryUnloading {
		if containsCategory(relevant, models.CategoryBreaking) || containsCategory(relevant, models.CategoryResuming) {
			return ReorderVerdict{Violation: ViolationCrossesBreak}
		}
	}
	return ReorderVerdict{}
}

// relevantPassed keeps the passed activities that constrain moved: those of
// a shared transport, plus anything when a break/resume is on either side.
// Members of a moved group header travel with it and are ignored.
func relevantPassed(moved models.SimilarActivityWithTransportData, passed []models.SimilarActivityWithTransportData) []models.SimilarActivityWithTransportData {
	ids := transportIDs(moved.Transports)
	own := make(map[string]struct{}, len(moved.SimilarUIDs))
	if moved.FakeMerged {
		for _, uid := range moved.SimilarUIDs {
			own[uid] = struct{}{}
		}
	}
	movedIsBreak := isBreakOrResume(moved.Category)

	out := make([]models.SimilarActivityWithTransportData, 0, len(passed))
	for _, p := range passed {
		if _, ok := own[p.UID]; ok {
			continue
		}
		if movedIsBreak || isBreakOrResume(p.Category) || sharesTransport(ids, p.Transports) {
			out = append(out, p)
		}
	}
	return out
}

func isBreakOrResume(c models.ActivityCategory) bool {
	return c == models.CategoryBreaking || c == models.CategoryResuming
}

func containsCategory(activities []models.SimilarActivityWithTransportData, c models.ActivityCategory) bool {
	for _, a := range activities {
		if a.Category == c {
			return true
		}
	}
	return false
}

// ReorderResult describes a committed drop in terms of the persisted order,
// which never contains group headers. MinIndex/MaxIndex bound the changed
// span (both -1 when nothing changed); TargetIndex is where the first moved
// uid lands.
type ReorderResult struct {
	OrderedUIDs []string `json:"ordered_uids"`
	MovedUIDs   []string `json:"moved_uids"`
	MinIndex    int      `json:"min_index"`
	MaxIndex    int      `json:"max_index"`
	TargetIndex int      `json:"target_index"`
}

func (r ReorderResult) Changed() bool {
	return r.MinIndex >= 0
}

// ComputeReorderedState recomputes the persisted order after a drop that
// already passed ValidateReorder. A group header moves together with its
// members, and a drop right after a collapsed group lands behind the whole
// group instead of splitting it.
func ComputeReorderedState(activities []models.SimilarActivityWithTransportData, collapsed CollapseState, source, destination int) ReorderResult {
	original := persistedUIDs(activities)
	res := ReorderResult{
		OrderedUIDs: original,
		MovedUIDs:   []string{},
		MinIndex:    -1,
		MaxIndex:    -1,
		TargetIndex: -1,
	}
	n := len(activities)
	if source < 0 || source >= n || destination < 0 || destination >= n || source == destination {
		return res
	}

	blockEnd := source
	if activities[source].FakeMerged {
		blockEnd = min(source+len(activities[source].SimilarUIDs), n-1)
	}

	anchor := destination - 1
	if destination > source {
		anchor = destination
	}
	if anchor >= source && anchor <= blockEnd {
		return res
	}
	anchor = pastCollapsedGroup(activities, collapsed, anchor)
	if anchor >= source && anchor <= blockEnd {
		return res
	}

	moving := make([]string, 0, blockEnd-source+1)
	for i := source; i <= blockEnd; i++ {
		if !activities[i].FakeMerged {
			moving = append(moving, activities[i].UID)
		}
	}

	rest := make([]string, 0, len(original))
	insertAt := 0
	for i, a := range activities {
		if i >= source && i <= blockEnd {
			continue
		}
		if !a.FakeMerged {
			rest = append(rest, a.UID)
		}
		if i == anchor {
			insertAt = len(rest)
		}
	}

	ordered := make([]string, 0, len(original))
	ordered = append(ordered, rest[:insertAt]...)
	ordered = append(ordered, moving...)
	ordered = append(ordered, rest[insertAt:]...)

	res.OrderedUIDs = ordered
	res.MovedUIDs = moving
	res.TargetIndex = insertAt
	for i := range ordered {
		if ordered[i] != original[i] {
			if res.MinIndex < 0 {
				res.MinIndex = i
			}
			res.MaxIndex = i
		}
	}
	return res
}

// pastCollapsedGroup moves an anchor that points into a collapsed group
// (its header or a hidden member) to the group's last member.
func pastCollapsedGroup(activities []models.SimilarActivityWithTransportData, collapsed CollapseState, anchor int) int {
	if anchor < 0 {
		return anchor
	}
	h := headerIndex(activities, anchor)
	if h < 0 || !collapsed.IsCollapsed(activities[h].UID) {
		return anchor
	}
	return min(h+len(activities[h].SimilarUIDs), len(activities)-1)
}

// headerIndex returns the index of the group header owning activities[i],
// or -1 for singletons.
func headerIndex(activities []models.SimilarActivityWithTransportData, i int) int {
	a := activities[i]
	if a.FakeMerged {
		return i
	}
	for pos, uid := range a.SimilarUIDs {
		if uid != a.UID {
			continue
		}
		h := i - pos - 1
		if h >= 0 && activities[h].FakeMerged {
			return h
		}
	}
	return -1
}

func persistedUIDs(activities []models.SimilarActivityWithTransportData) []string {
	out := make([]string, 0, len(activities))
	for _, a := range activities {
		if !a.FakeMerged {
			out = append(out, a.UID)
		}
	}
	return out
}
