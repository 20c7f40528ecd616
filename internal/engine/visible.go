package engine

import "github.com/BearBump/TripFlow/internal/models"

// CollapseState holds the uids of group headers the caller shows collapsed.
type CollapseState map[string]bool

func NewCollapseState(headerUIDs ...string) CollapseState {
	s := make(CollapseState, len(headerUIDs))
	for _, uid := range headerUIDs {
		s[uid] = true
	}
	return s
}

func (s CollapseState) IsCollapsed(headerUID string) bool {
	return s[headerUID]
}

// Visible drops the members of collapsed groups. Headers and singletons
// always stay.
func Visible(activities []models.SimilarActivityWithTransportData, collapsed CollapseState) []models.SimilarActivityWithTransportData {
	out := make([]models.SimilarActivityWithTransportData, 0, len(activities))
	for i, a := range activities {
		if !a.FakeMerged && len(a.SimilarUIDs) > 0 {
			if h := headerIndex(activities, i); h >= 0 && collapsed.IsCollapsed(activities[h].UID) {
				continue
			}
		}
		out = append(out, a)
	}
	return out
}
