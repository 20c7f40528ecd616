package engine

import "github.com/BearBump/TripFlow/internal/models"

// TransportRelatedWindow lists the activities that go together with target
// when it is removed: non-header activities sharing a transport with it,
// fenced by the nearest preceding resume and the nearest following break.
// Target itself is not part of the result.
func TransportRelatedWindow(activities []models.SimilarActivityWithTransportData, target models.SimilarActivityWithTransportData) []models.SimilarActivityWithTransportData {
	ids := transportIDs(target.Transports)

	related := make([]models.SimilarActivityWithTransportData, 0, len(activities))
	pos := -1
	for _, a := range activities {
		if a.FakeMerged || !sharesTransport(ids, a.Transports) {
			continue
		}
		if a.UID == target.UID {
			pos = len(related)
		}
		related = append(related, a)
	}
	if pos < 0 {
		return []models.SimilarActivityWithTransportData{}
	}

	start := 0
	for i := pos - 1; i >= 0; i-- {
		if related[i].Category == models.CategoryResuming {
			start = i + 1
			break
		}
	}
	end := len(related)
	for i := pos + 1; i < len(related); i++ {
		if related[i].Category == models.CategoryBreaking {
			end = i
			break
		}
	}

	out := make([]models.SimilarActivityWithTransportData, 0, end-start)
	for i := start; i < end; i++ {
		if i != pos {
			out = append(out, related[i])
		}
	}
	return out
}

// CanInsertBreak reports whether a break/resume pair may follow the activity
// at index: at least one transport must appear both up to index and after it.
func CanInsertBreak(activities []models.SimilarActivityWithTransportData, index int) bool {
	if index < 0 || index >= len(activities)-1 {
		return false
	}
	before := make(map[int64]struct{})
	for _, a := range activities[:index+1] {
		for _, t := range a.Transports {
			before[t.ID] = struct{}{}
		}
	}
	for _, a := range activities[index+1:] {
		for _, t := range a.Transports {
			if _, ok := before[t.ID]; ok {
				return true
			}
		}
	}
	return false
}

func transportIDs(ts []models.Transport) map[int64]struct{} {
	ids := make(map[int64]struct{}, len(ts))
	for _, t := range ts {
		ids[t.ID] = struct{}{}
	}
	return ids
}

func sharesTransport(ids map[int64]struct{}, ts []models.Transport) bool {
	for _, t := range ts {
		if _, ok := ids[t.ID]; ok {
			return true
		}
	}
	return false
}
