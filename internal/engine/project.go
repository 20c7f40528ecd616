package engine

import "github.com/BearBump/TripFlow/internal/models"

// CompactTrip projects a raw trip onto its collapsed activity list.
func CompactTrip(trip models.RawTrip) models.CompactTrip {
	return models.CompactTrip{
		UID:            trip.UID,
		Activities:     Collapse(GroupConsecutive(trip.Activities)),
		Trucker:        copyMeans(trip.Trucker),
		Vehicle:        copyMeans(trip.Vehicle),
		Trailer:        copyMeans(trip.Trailer),
		Status:         trip.Status,
		Turnover:       copyFloat(trip.Turnover),
		ChildTransport: copyChild(trip.ChildTransport),
		OwnedByCompany: trip.OwnedByCompany,
		IsPrepared:     trip.IsPrepared,
	}
}

// ExpandTrip projects a raw trip onto its expanded activity list.
func ExpandTrip(trip models.RawTrip) models.TripWithTransportData {
	return models.TripWithTransportData{
		UID:            trip.UID,
		Activities:     Expand(GroupConsecutive(trip.Activities)),
		Trucker:        copyMeans(trip.Trucker),
		Vehicle:        copyMeans(trip.Vehicle),
		Trailer:        copyMeans(trip.Trailer),
		Status:         trip.Status,
		Turnover:       copyFloat(trip.Turnover),
		ChildTransport: copyChild(trip.ChildTransport),
		OwnedByCompany: trip.OwnedByCompany,
		IsPrepared:     trip.IsPrepared,
	}
}

func copyMeans(m *models.Means) *models.Means {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

func copyChild(c *models.ChildTransport) *models.ChildTransport {
	if c == nil {
		return nil
	}
	cc := *c
	return &cc
}
