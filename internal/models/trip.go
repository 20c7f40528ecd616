package models

import "time"

type ActivityCategory string

const (
	CategoryLoading   ActivityCategory = "loading"
	CategoryUnloading ActivityCategory = "unloading"
	CategoryBreaking  ActivityCategory = "breaking"
	CategoryResuming  ActivityCategory = "resuming"
	CategoryTripStart ActivityCategory = "trip_start"
	CategoryTripEnd   ActivityCategory = "trip_end"
	CategoryNone      ActivityCategory = ""
)

// Lifecycle statuses reported by the persistence layer.
type ActivityStatus string

const (
	StatusCreated            ActivityStatus = "created"
	StatusApproaching        ActivityStatus = "approaching"
	StatusOnSite             ActivityStatus = "on_site"
	StatusActivityInProgress ActivityStatus = "activity_in_progress"
	StatusActivityDone       ActivityStatus = "activity_done"
	StatusDeparted           ActivityStatus = "departed"
)

// CancelledStatus is independent of ActivityStatus. Empty means "not cancelled".
type CancelledStatus string

const (
	NotCancelled CancelledStatus = ""
	Cancelled    CancelledStatus = "cancelled"
	Deleted      CancelledStatus = "deleted"
)

const (
	TransportStatusDone = "done"

	LoadCategoryRental = "rental"
)

type Address struct {
	PK       int64  `json:"pk,omitempty"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	City     string `json:"city"`
	Postcode string `json:"postcode"`
	Country  string `json:"country"`
	Company  string `json:"company,omitempty"`
}

type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type Load struct {
	UID         string  `json:"uid"`
	Category    string  `json:"category"`
	Description string  `json:"description,omitempty"`
	Quantity    float64 `json:"quantity,omitempty"`
}

type Delivery struct {
	UID              string `json:"uid"`
	SequentialID     int64  `json:"sequential_id"`
	PlannedLoads     []Load `json:"planned_loads"`
	OriginLoads      []Load `json:"origin_loads"`
	DestinationLoads []Load `json:"destination_loads"`
	MultipleRounds   bool   `json:"multiple_rounds"`
}

type Transport struct {
	ID                     int64    `json:"id"`
	UID                    string   `json:"uid"`
	SequentialID           int64    `json:"sequential_id"`
	Shipper                string   `json:"shipper,omitempty"`
	Tags                   []string `json:"tags,omitempty"`
	RequestedVehicle       string   `json:"requested_vehicle,omitempty"`
	IsMultipleCompartments bool     `json:"is_multiple_compartments"`
	BusinessPrivacy        bool     `json:"business_privacy"`
	CarrierID              *int64   `json:"carrier_id,omitempty"`
	Instructions           string   `json:"instructions,omitempty"`
	GlobalStatus           string   `json:"global_status"`
}

// ActivityBase holds the fields every activity representation shares.
type ActivityBase struct {
	UID                  string           `json:"uid"`
	Category             ActivityCategory `json:"category"`
	Address              *Address         `json:"address"`
	Status               ActivityStatus   `json:"status"`
	CancelledStatus      CancelledStatus  `json:"cancelled_status,omitempty"`
	RealStart            *time.Time       `json:"real_start"`
	RealEnd              *time.Time       `json:"real_end"`
	ScheduledRange       *TimeRange       `json:"scheduled_range"`
	IsBookingNeeded      bool             `json:"is_booking_needed"`
	LockedRequestedTimes bool             `json:"locked_requested_times"`
	Reference            string           `json:"reference"`

	// Only meaningful on the last activity of a similarity group.
	EstimatedDistanceToNext    *float64 `json:"estimated_distance_to_next_trip_activity"`
	EstimatedDrivingTimeToNext *float64 `json:"estimated_driving_time_to_next_trip_activity"`
}

func (b ActivityBase) IsCancelled() bool {
	return b.CancelledStatus != NotCancelled
}

// Activity is the raw stop-level unit as stored.
type Activity struct {
	ActivityBase
	Slots          []TimeRange `json:"slots"`
	DeliveriesFrom []Delivery  `json:"deliveries_from"`
	DeliveriesTo   []Delivery  `json:"deliveries_to"`
	Transport      *Transport  `json:"transport"`
}

func (a Activity) Lifecycle() (ActivityStatus, CancelledStatus) {
	return a.Status, a.CancelledStatus
}

func (a Activity) OwningTransports() []Transport {
	if a.Transport == nil {
		return nil
	}
	return []Transport{*a.Transport}
}

// SimilarActivity is one similarity group collapsed into a single entity.
type SimilarActivity struct {
	ActivityBase
	Slots          []TimeRange `json:"slots"`
	DeliveriesFrom []Delivery  `json:"deliveries_from"`
	DeliveriesTo   []Delivery  `json:"deliveries_to"`
	Transports     []Transport `json:"transports"`
	SimilarUIDs    []string    `json:"similarUids"`
	FakeMerged     bool        `json:"fakeMerged"`
}

func (a SimilarActivity) Lifecycle() (ActivityStatus, CancelledStatus) {
	return a.Status, a.CancelledStatus
}

func (a SimilarActivity) OwningTransports() []Transport {
	return a.Transports
}

// TransportRef identifies the group member an aggregated entry came from.
type TransportRef struct {
	TransportUID string `json:"transportUid"`
	TransportID  int64  `json:"transportId"`
}

type TaggedDelivery struct {
	Delivery
	Origin *TransportRef `json:"origin,omitempty"`
}

type TaggedSlot struct {
	TimeRange
	Origin *TransportRef `json:"origin,omitempty"`
}

// SimilarActivityWithTransportData is an entry of the expanded list: either a
// group header (FakeMerged, tagged entries) or an individual activity.
type SimilarActivityWithTransportData struct {
	ActivityBase
	Slots          []TaggedSlot     `json:"slots"`
	DeliveriesFrom []TaggedDelivery `json:"deliveries_from"`
	DeliveriesTo   []TaggedDelivery `json:"deliveries_to"`
	Transports     []Transport      `json:"transports"`
	SimilarUIDs    []string         `json:"similarUids"`
	FakeMerged     bool             `json:"fakeMerged"`
}

func (a SimilarActivityWithTransportData) Lifecycle() (ActivityStatus, CancelledStatus) {
	return a.Status, a.CancelledStatus
}

func (a SimilarActivityWithTransportData) OwningTransports() []Transport {
	return a.Transports
}

type Means struct {
	UID     string `json:"uid"`
	Name    string `json:"name"`
	License string `json:"license_plate,omitempty"`
}

type ChildTransport struct {
	UID       string `json:"uid"`
	CarrierID int64  `json:"carrier_id"`
	Status    string `json:"status"`
}

// Trip is an ordered chain of activities executed by one set of means.
type Trip[A any] struct {
	UID            string          `json:"uid"`
	Activities     []A             `json:"activities"`
	Trucker        *Means          `json:"trucker"`
	Vehicle        *Means          `json:"vehicle"`
	Trailer        *Means          `json:"trailer"`
	Status         string          `json:"status"`
	Turnover       *float64        `json:"turnover"`
	ChildTransport *ChildTransport `json:"child_transport"`
	OwnedByCompany int64           `json:"owned_by_company"`
	IsPrepared     bool            `json:"is_prepared"`
}

type RawTrip = Trip[Activity]

type CompactTrip = Trip[SimilarActivity]

type TripWithTransportData = Trip[SimilarActivityWithTransportData]
