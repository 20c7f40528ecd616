package engine

import "github.com/BearBump/TripFlow/internal/models"

type MergeRejection string

const (
	RejectRental            MergeRejection = "rental"
	RejectRound             MergeRejection = "round"
	RejectMultiCompartments MergeRejection = "multiCompartments"
	RejectBusinessPrivacy   MergeRejection = "businessPrivacy"
)

type InvalidTripInfo struct {
	Trip   models.RawTrip `json:"trip"`
	Reason MergeRejection `json:"reason"`
}

type MergeValidation struct {
	InvalidTripsInfo []InvalidTripInfo `json:"invalidTripsInfo"`
	ValidTrips       []models.RawTrip  `json:"validTrips"`
}

// ValidateTripsMerge splits trips into those that can be merged into one trip
// and those that cannot, keeping input order in both parts.
func ValidateTripsMerge(trips []models.RawTrip) MergeValidation {
	out := MergeValidation{
		InvalidTripsInfo: []InvalidTripInfo{},
		ValidTrips:       []models.RawTrip{},
	}
	for _, t := range trips {
		if reason, ok := mergeRejection(t); ok {
			out.InvalidTripsInfo = append(out.InvalidTripsInfo, InvalidTripInfo{Trip: t, Reason: reason})
			continue
		}
		out.ValidTrips = append(out.ValidTrips, t)
	}
	return out
}

func mergeRejection(t models.RawTrip) (MergeRejection, bool) {
	if first, ok := firstRealActivity(t.Activities); ok && hasRentalLoad(first.DeliveriesFrom) {
		return RejectRental, true
	}
	for _, a := range t.Activities {
		for _, d := range a.DeliveriesFrom {
			if d.MultipleRounds {
				return RejectRound, true
			}
		}
	}
	for _, a := range t.Activities {
		if a.Transport != nil && a.Transport.IsMultipleCompartments {
			return RejectMultiCompartments, true
		}
	}
	for _, a := range t.Activities {
		if a.Transport != nil && a.Transport.BusinessPrivacy {
			return RejectBusinessPrivacy, true
		}
	}
	return "", false
}

// firstRealActivity skips trip boundaries and break/resume markers.
func firstRealActivity(activities []models.Activity) (models.Activity, bool) {
	for _, a := range activities {
		switch a.Category {
		case models.CategoryTripStart, models.CategoryTripEnd, models.CategoryBreaking, models.CategoryResuming:
			continue
		}
		return a, true
	}
	return models.Activity{}, false
}

func hasRentalLoad(deliveries []models.Delivery) bool {
	for _, d := range deliveries {
		for _, l := range d.PlannedLoads {
			if l.Category == models.LoadCategoryRental {
				return true
			}
		}
	}
	return false
}
