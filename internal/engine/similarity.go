package engine

import "github.com/BearBump/TripFlow/internal/models"

// AreSimilar reports whether two activities may be shown as one stop:
// same category, same lifecycle status, same address and neither cancelled.
func AreSimilar(a, b models.Activity) bool {
	if a.IsCancelled() || b.IsCancelled() {
		return false
	}
	if a.Category != b.Category || a.Status != b.Status {
		return false
	}
	return sameAddress(a.Address, b.Address)
}

func sameAddress(a, b *models.Address) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Address == b.Address &&
		a.City == b.City &&
		a.Postcode == b.Postcode &&
		a.Country == b.Country &&
		a.Name == b.Name
}

// GroupConsecutive partitions activities into runs of similar neighbours.
// Each incoming activity is compared with the first member of the open group.
// Trip boundaries always stay alone.
func GroupConsecutive(activities []models.Activity) [][]models.Activity {
	groups := make([][]models.Activity, 0, len(activities))
	var current []models.Activity
	for _, a := range activities {
		if len(current) > 0 && !isBoundary(a) && !isBoundary(current[0]) && AreSimilar(current[0], a) {
			current = append(current, a)
			continue
		}
		if len(current) > 0 {
			groups = append(groups, current)
		}
		current = []models.Activity{a}
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups
}

func isBoundary(a models.Activity) bool {
	return a.Category == models.CategoryTripStart || a.Category == models.CategoryTripEnd
}
