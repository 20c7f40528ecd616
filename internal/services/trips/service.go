package trips

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/TripFlow/internal/broker/messages"
	"github.com/BearBump/TripFlow/internal/cache"
	"github.com/BearBump/TripFlow/internal/engine"
	"github.com/BearBump/TripFlow/internal/models"
	"github.com/BearBump/TripFlow/internal/storage/pgtrips"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Repository interface {
	GetTrip(ctx context.Context, tripUID string) (*models.RawTrip, error)
	GetTrips(ctx context.Context, uids []string) ([]*models.RawTrip, error)
	SaveTrip(ctx context.Context, trip models.RawTrip) error
	ReorderActivities(ctx context.Context, upd pgtrips.ReorderUpdate) error
	InsertActivitiesAfter(ctx context.Context, tripUID string, afterPosition int, acts []models.Activity) error
	MarkProjectionStale(ctx context.Context, tripUID string) error
}

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Options struct {
	// ProjectionTTL <= 0 disables the projection cache.
	ProjectionTTL time.Duration
	// ReorderLimitPerMinute <= 0 disables throttling of reorder commits.
	ReorderLimitPerMinute int64
	ChangedTopic          string
	PublishAttempts       int
	PublishBackoff        time.Duration
}

func DefaultOptions() Options {
	return Options{
		ProjectionTTL:         10 * time.Minute,
		ReorderLimitPerMinute: 60,
		ChangedTopic:          "trip.activities.changed",
		PublishAttempts:       5,
		PublishBackoff:        150 * time.Millisecond,
	}
}

type Service struct {
	repo  Repository
	cache cache.BytesCache
	pub   Publisher
	rl    RateLimiter
	opts  Options

	now    func() time.Time
	newUID func() string
}

func New(repo Repository, c cache.BytesCache, pub Publisher, rl RateLimiter, opts Options) *Service {
	if opts.PublishAttempts <= 0 {
		opts.PublishAttempts = 1
	}
	return &Service{
		repo: repo, cache: c, pub: pub, rl: rl, opts: opts,
		now:    func() time.Time { return time.Now().UTC() },
		newUID: uuid.NewString,
	}
}

// CompactTrip returns the trip with every similarity group collapsed.
func (s *Service) CompactTrip(ctx context.Context, tripUID string) (*models.CompactTrip, error) {
	var out models.CompactTrip
	if s.cacheGet(ctx, compactKey(tripUID), &out) {
		return &out, nil
	}
	raw, err := s.loadTrip(ctx, tripUID)
	if err != nil {
		return nil, err
	}
	out = engine.CompactTrip(*raw)
	s.cacheSet(ctx, compactKey(tripUID), out)
	return &out, nil
}

// ExpandedTrip returns the trip as headers followed by their members.
func (s *Service) ExpandedTrip(ctx context.Context, tripUID string) (*models.TripWithTransportData, error) {
	var out models.TripWithTransportData
	if s.cacheGet(ctx, expandedKey(tripUID), &out) {
		return &out, nil
	}
	raw, err := s.loadTrip(ctx, tripUID)
	if err != nil {
		return nil, err
	}
	out = engine.ExpandTrip(*raw)
	s.cacheSet(ctx, expandedKey(tripUID), out)
	return &out, nil
}

// VisibleActivities is the expanded list without members of collapsed groups.
func (s *Service) VisibleActivities(ctx context.Context, tripUID string, collapsed []string) ([]models.SimilarActivityWithTransportData, error) {
	trip, err := s.ExpandedTrip(ctx, tripUID)
	if err != nil {
		return nil, err
	}
	return engine.Visible(trip.Activities, engine.NewCollapseState(collapsed...)), nil
}

// CheckReorder only validates a move; nothing is persisted.
func (s *Service) CheckReorder(ctx context.Context, tripUID string, source, destination int) (engine.ReorderVerdict, error) {
	trip, err := s.ExpandedTrip(ctx, tripUID)
	if err != nil {
		return engine.ReorderVerdict{}, err
	}
	return engine.ValidateReorder(trip.Activities, source, destination), nil
}

type ReorderRequest struct {
	Source      int
	Destination int
	// Collapsed lists the group headers the caller currently shows collapsed.
	Collapsed []string
}

// Reorder validates and commits a move of the expanded list. Only the changed
// span of positions is written. A move that leaves the order unchanged, or a
// header dropped inside its own group, commits nothing.
func (s *Service) Reorder(ctx context.Context, tripUID string, req ReorderRequest) (engine.ReorderResult, error) {
	if tripUID == "" {
		return engine.ReorderResult{}, errors.Wrap(ErrInvalidArgument, "tripUid is required")
	}
	if err := s.allowReorder(ctx, tripUID); err != nil {
		return engine.ReorderResult{}, err
	}

	raw, err := s.loadTrip(ctx, tripUID)
	if err != nil {
		return engine.ReorderResult{}, err
	}
	expanded := engine.ExpandTrip(*raw).Activities

	verdict := engine.ValidateReorder(expanded, req.Source, req.Destination)
	if !verdict.Legal() {
		return engine.ReorderResult{}, &ReorderRejectedError{Verdict: verdict}
	}

	res := engine.ComputeReorderedState(expanded, engine.NewCollapseState(req.Collapsed...), req.Source, req.Destination)
	if verdict.WithinGroup || !res.Changed() {
		return res, nil
	}

	expected := make([]string, len(raw.Activities))
	for i, a := range raw.Activities {
		expected[i] = a.UID
	}
	err = s.repo.ReorderActivities(ctx, pgtrips.ReorderUpdate{
		TripUID:      tripUID,
		ExpectedUIDs: expected,
		OrderedUIDs:  res.OrderedUIDs,
		MinIndex:     res.MinIndex,
		MaxIndex:     res.MaxIndex,
	})
	if errors.Is(err, pgtrips.ErrOrderChanged) {
		// cached views may predate the competing change
		s.invalidate(ctx, tripUID)
	}
	if err != nil {
		return engine.ReorderResult{}, s.mapRepoErr(err, tripUID)
	}

	s.invalidate(ctx, tripUID)
	s.publishChange(ctx, messages.TripActivitiesChanged{
		TripUID:     tripUID,
		Kind:        messages.ChangeReordered,
		OrderedUIDs: res.OrderedUIDs,
		MovedUIDs:   res.MovedUIDs,
		MinIndex:    res.MinIndex,
		MaxIndex:    res.MaxIndex,
		TargetIndex: res.TargetIndex,
		At:          s.now(),
	})
	return res, nil
}

func (s *Service) CanInsertBreak(ctx context.Context, tripUID string, index int) (bool, error) {
	trip, err := s.ExpandedTrip(ctx, tripUID)
	if err != nil {
		return false, err
	}
	if index < 0 || index >= len(trip.Activities) {
		return false, nil
	}
	return engine.CanInsertBreak(trip.Activities, breakAnchor(trip.Activities, index)), nil
}

type BreakInsertion struct {
	BreakUID      string `json:"break_uid"`
	ResumeUID     string `json:"resume_uid"`
	AfterPosition int    `json:"after_position"`
}

// InsertBreak adds a break/resume pair after the activity at index of the
// expanded list. For a group header the pair goes behind the whole group.
func (s *Service) InsertBreak(ctx context.Context, tripUID string, index int) (*BreakInsertion, error) {
	raw, err := s.loadTrip(ctx, tripUID)
	if err != nil {
		return nil, err
	}
	expanded := engine.ExpandTrip(*raw).Activities
	if index < 0 || index >= len(expanded) {
		return nil, errors.Wrapf(ErrInvalidArgument, "index %d out of range", index)
	}
	anchor := breakAnchor(expanded, index)
	if !engine.CanInsertBreak(expanded, anchor) {
		return nil, ErrBreakNotAllowed
	}

	var transport *models.Transport
	if ts := expanded[index].Transports; len(ts) > 0 {
		t := ts[0]
		transport = &t
	}
	pair := []models.Activity{
		breakActivity(s.newUID(), models.CategoryBreaking, transport),
		breakActivity(s.newUID(), models.CategoryResuming, transport),
	}
	after := persistedPosition(expanded, anchor)

	if err := s.repo.InsertActivitiesAfter(ctx, tripUID, after, pair); err != nil {
		return nil, s.mapRepoErr(err, tripUID)
	}

	s.invalidate(ctx, tripUID)

	ordered := make([]string, 0, len(raw.Activities)+2)
	for i, a := range raw.Activities {
		ordered = append(ordered, a.UID)
		if i == after {
			ordered = append(ordered, pair[0].UID, pair[1].UID)
		}
	}
	s.publishChange(ctx, messages.TripActivitiesChanged{
		TripUID:     tripUID,
		Kind:        messages.ChangeBreakInserted,
		OrderedUIDs: ordered,
		MovedUIDs:   []string{pair[0].UID, pair[1].UID},
		MinIndex:    after + 1,
		MaxIndex:    len(ordered) - 1,
		TargetIndex: after + 1,
		At:          s.now(),
	})

	return &BreakInsertion{BreakUID: pair[0].UID, ResumeUID: pair[1].UID, AfterPosition: after}, nil
}

// RelatedActivities lists what has to go together with the activity when it
// is deleted.
func (s *Service) RelatedActivities(ctx context.Context, tripUID, activityUID string) ([]models.SimilarActivityWithTransportData, error) {
	trip, err := s.ExpandedTrip(ctx, tripUID)
	if err != nil {
		return nil, err
	}
	for _, a := range trip.Activities {
		if !a.FakeMerged && a.UID == activityUID {
			return engine.TransportRelatedWindow(trip.Activities, a), nil
		}
	}
	return nil, errors.Wrap(ErrActivityNotFound, activityUID)
}

func (s *Service) ValidateMerge(ctx context.Context, tripUIDs []string) (engine.MergeValidation, error) {
	if len(tripUIDs) == 0 {
		return engine.MergeValidation{}, errors.Wrap(ErrInvalidArgument, "tripUids is empty")
	}
	found, err := s.repo.GetTrips(ctx, tripUIDs)
	if err != nil {
		return engine.MergeValidation{}, err
	}
	byUID := make(map[string]*models.RawTrip, len(found))
	for _, t := range found {
		byUID[t.UID] = t
	}
	trips := make([]models.RawTrip, 0, len(tripUIDs))
	for _, uid := range tripUIDs {
		t, ok := byUID[uid]
		if !ok {
			return engine.MergeValidation{}, errors.Wrap(ErrTripNotFound, uid)
		}
		trips = append(trips, *t)
	}
	return engine.ValidateTripsMerge(trips), nil
}

// WarmProjections recomputes both projections of a trip and stores them in
// the cache.
func (s *Service) WarmProjections(ctx context.Context, tripUID string) error {
	raw, err := s.loadTrip(ctx, tripUID)
	if err != nil {
		return err
	}
	if !s.cacheEnabled() {
		return nil
	}
	for key, v := range map[string]any{
		compactKey(tripUID):  engine.CompactTrip(*raw),
		expandedKey(tripUID): engine.ExpandTrip(*raw),
	} {
		b, err := json.Marshal(v)
		if err != nil {
			return errors.Wrap(err, "marshal projection")
		}
		if err := s.cache.Set(ctx, key, b, s.opts.ProjectionTTL); err != nil {
			return err
		}
	}
	return nil
}

// ApplyTripUpdated handles an upstream change notification. A carried trip
// snapshot replaces the stored one; otherwise the trip is only marked stale.
func (s *Service) ApplyTripUpdated(ctx context.Context, msg messages.TripUpdated) error {
	if msg.TripUID == "" {
		return errors.Wrap(ErrInvalidArgument, "trip_uid is required")
	}
	if msg.Trip != nil {
		if msg.Trip.UID != msg.TripUID {
			return errors.Wrapf(ErrInvalidArgument, "trip uid mismatch: %s != %s", msg.Trip.UID, msg.TripUID)
		}
		if err := s.repo.SaveTrip(ctx, *msg.Trip); err != nil {
			return err
		}
	} else if err := s.repo.MarkProjectionStale(ctx, msg.TripUID); err != nil {
		if !errors.Is(err, pgtrips.ErrNotFound) {
			return err
		}
		slog.Warn("update for unknown trip", "trip_uid", msg.TripUID)
	}
	s.invalidate(ctx, msg.TripUID)
	return nil
}

func (s *Service) allowReorder(ctx context.Context, tripUID string) error {
	if s.rl == nil || s.opts.ReorderLimitPerMinute <= 0 {
		return nil
	}
	key := fmt.Sprintf("rl:reorder:%s:%s", tripUID, s.now().Format("200601021504"))
	allowed, n, err := s.rl.Allow(ctx, key, s.opts.ReorderLimitPerMinute, 70*time.Second)
	if err != nil {
		return err
	}
	if !allowed {
		slog.Warn("reorder rate limit exceeded", "trip_uid", tripUID, "count", n)
		return ErrRateLimited
	}
	return nil
}

func (s *Service) loadTrip(ctx context.Context, tripUID string) (*models.RawTrip, error) {
	if tripUID == "" {
		return nil, errors.Wrap(ErrInvalidArgument, "tripUid is required")
	}
	raw, err := s.repo.GetTrip(ctx, tripUID)
	if err != nil {
		return nil, s.mapRepoErr(err, tripUID)
	}
	return raw, nil
}

func (s *Service) mapRepoErr(err error, tripUID string) error {
	switch {
	case errors.Is(err, pgtrips.ErrNotFound):
		return errors.Wrap(ErrTripNotFound, tripUID)
	case errors.Is(err, pgtrips.ErrOrderChanged):
		return errors.Wrap(ErrConcurrentChange, tripUID)
	}
	return err
}

func (s *Service) publishChange(ctx context.Context, msg messages.TripActivitiesChanged) {
	if s.pub == nil || s.opts.ChangedTopic == "" {
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal trip change", "trip_uid", msg.TripUID, "error", err.Error())
		return
	}

	// The change is committed at this point; failures are only logged.
	var pubErr error
	for i := 0; i < s.opts.PublishAttempts; i++ {
		if pubErr = s.pub.Publish(ctx, s.opts.ChangedTopic, []byte(msg.TripUID), b); pubErr == nil {
			return
		}
		select {
		case <-ctx.Done():
			slog.Error("publish trip change", "trip_uid", msg.TripUID, "error", ctx.Err().Error())
			return
		case <-time.After(time.Duration(i+1) * s.opts.PublishBackoff):
		}
	}
	slog.Error("publish trip change", "trip_uid", msg.TripUID, "kind", string(msg.Kind), "error", pubErr.Error())
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.opts.ProjectionTTL > 0
}

func (s *Service) cacheGet(ctx context.Context, key string, dst any) bool {
	if !s.cacheEnabled() {
		return false
	}
	b, ok, err := s.cache.Get(ctx, key)
	if err != nil || !ok {
		return false
	}
	return json.Unmarshal(b, dst) == nil
}

func (s *Service) cacheSet(ctx context.Context, key string, v any) {
	if !s.cacheEnabled() {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		slog.Warn("encode cached projection", "key", key, "error", err.Error())
		return
	}
	if err := s.cache.Set(ctx, key, b, s.opts.ProjectionTTL); err != nil {
		slog.Warn("cache projection", "key", key, "error", err.Error())
	}
}

func (s *Service) invalidate(ctx context.Context, tripUID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, compactKey(tripUID), expandedKey(tripUID)); err != nil {
		slog.Warn("drop cached projections", "trip_uid", tripUID, "error", err.Error())
	}
}

// breakAnchor is the expanded index a break actually follows: a group header
// stands for its last member.
func breakAnchor(expanded []models.SimilarActivityWithTransportData, index int) int {
	if expanded[index].FakeMerged {
		return min(index+len(expanded[index].SimilarUIDs), len(expanded)-1)
	}
	return index
}

// persistedPosition maps a non-header index of the expanded list to the
// stored position of that activity.
func persistedPosition(expanded []models.SimilarActivityWithTransportData, index int) int {
	pos := -1
	for i := 0; i <= index; i++ {
		if !expanded[i].FakeMerged {
			pos++
		}
	}
	return pos
}

func breakActivity(uid string, cat models.ActivityCategory, t *models.Transport) models.Activity {
	return models.Activity{
		ActivityBase: models.ActivityBase{
			UID:      uid,
			Category: cat,
			Status:   models.StatusCreated,
		},
		Slots:          []models.TimeRange{},
		DeliveriesFrom: []models.Delivery{},
		DeliveriesTo:   []models.Delivery{},
		Transport:      t,
	}
}

func compactKey(tripUID string) string {
	return fmt.Sprintf("trip:%s:compact", tripUID)
}

func expandedKey(tripUID string) string {
	return fmt.Sprintf("trip:%s:expanded", tripUID)
}
