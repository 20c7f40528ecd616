package mocks

import (
	context "context"

	models "github.com/BearBump/TripFlow/internal/models"
	pgtrips "github.com/BearBump/TripFlow/internal/storage/pgtrips"
	mock "github.com/stretchr/testify/mock"
)

// MockRepository is a mock type for the Repository type
type MockRepository struct {
	mock.Mock
}

// GetTrip provides a mock function with given fields: ctx, tripUID
func (_m *MockRepository) GetTrip(ctx context.Context, tripUID string) (*models.RawTrip, error) {
	ret := _m.Called(ctx, tripUID)

	var r0 *models.RawTrip
	if rf, ok := ret.Get(0).(func(context.Context, string) *models.RawTrip); ok {
		r0 = rf(ctx, tripUID)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.RawTrip)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, tripUID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// GetTrips provides a mock function with given fields: ctx, uids
func (_m *MockRepository) GetTrips(ctx context.Context, uids []string) ([]*models.RawTrip, error) {
	ret := _m.Called(ctx, uids)

	var r0 []*models.RawTrip
	if rf, ok := ret.Get(0).(func(context.Context, []string) []*models.RawTrip); ok {
		r0 = rf(ctx, uids)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*models.RawTrip)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, []string) error); ok {
		r1 = rf(ctx, uids)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// SaveTrip provides a mock function with given fields: ctx, trip
func (_m *MockRepository) SaveTrip(ctx context.Context, trip models.RawTrip) error {
	ret := _m.Called(ctx, trip)
	return ret.Error(0)
}

// ReorderActivities provides a mock function with given fields: ctx, upd
func (_m *MockRepository) ReorderActivities(ctx context.Context, upd pgtrips.ReorderUpdate) error {
	ret := _m.Called(ctx, upd)
	return ret.Error(0)
}

// InsertActivitiesAfter provides a mock function with given fields: ctx, tripUID, afterPosition, acts
func (_m *MockRepository) InsertActivitiesAfter(ctx context.Context, tripUID string, afterPosition int, acts []models.Activity) error {
	ret := _m.Called(ctx, tripUID, afterPosition, acts)
	return ret.Error(0)
}

// MarkProjectionStale provides a mock function with given fields: ctx, tripUID
func (_m *MockRepository) MarkProjectionStale(ctx context.Context, tripUID string) error {
	ret := _m.Called(ctx, tripUID)
	return ret.Error(0)
}
