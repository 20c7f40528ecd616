package projector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/TripFlow/internal/models"
	"github.com/pkg/errors"
)

type Repository interface {
	ClaimStaleTrips(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.ProjectionJob, error)
	CompleteProjection(ctx context.Context, tripUID string, leaseUntil time.Time) (bool, error)
	FailProjection(ctx context.Context, tripUID, errMsg string, nextAt, leaseUntil time.Time) error
}

// Warmer rebuilds and caches the projections of one trip.
type Warmer interface {
	WarmProjections(ctx context.Context, tripUID string) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// Poller claims trips with stale projections and rebuilds them.
type Poller struct {
	repo   Repository
	warmer Warmer
	rl     RateLimiter

	planner *Planner

	pollInterval       time.Duration
	batchSize          int
	concurrency        int
	lease              time.Duration
	rateLimitPerMinute int64

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalClaimed        atomic.Int64
	totalProcessed      atomic.Int64
	totalErrors         atomic.Int64
	totalSuperseded     atomic.Int64
	totalDeferred       atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, warmer Warmer, rl RateLimiter) *Poller {
	return &Poller{
		repo: repo, warmer: warmer, rl: rl,
		planner:           DefaultPlanner(),
		pollInterval:      2 * time.Second,
		batchSize:         100,
		concurrency:       10,
		lease:             120 * time.Second,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func DefaultPlanner() *Planner {
	return NewPlanner(DefaultPlannerConfig(), nil)
}

func (p *Poller) WithSettings(pollInterval time.Duration, batchSize, concurrency int, lease time.Duration, rlPerMin int64) *Poller {
	if pollInterval > 0 {
		p.pollInterval = pollInterval
	}
	if batchSize > 0 {
		p.batchSize = batchSize
	}
	if concurrency > 0 {
		p.concurrency = concurrency
	}
	if lease > 0 {
		p.lease = lease
	}
	if rlPerMin > 0 {
		p.rateLimitPerMinute = rlPerMin
	}
	return p
}

func (p *Poller) WithPlanner(cfg PlannerConfig) *Poller {
	p.planner = NewPlanner(cfg, nil)
	return p
}

// Trigger forces an immediate cycle (best-effort, non-blocking).
func (p *Poller) Trigger() {
	p.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt       time.Time  `json:"startedAt"`
	LastCycleAt     *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt   *time.Time `json:"lastTriggerAt,omitempty"`
	TotalClaimed    int64      `json:"totalClaimed"`
	TotalProcessed  int64      `json:"totalProcessed"`
	TotalErrors     int64      `json:"totalErrors"`
	TotalSuperseded int64      `json:"totalSuperseded"`
	TotalDeferred   int64      `json:"totalDeferred"`
	InFlight        int64      `json:"inFlight"`
	LastError       string     `json:"lastError,omitempty"`
}

func (p *Poller) Stats() Stats {
	st := Stats{
		StartedAt:       time.Unix(0, p.startedAtUnixNano).UTC(),
		TotalClaimed:    p.totalClaimed.Load(),
		TotalProcessed:  p.totalProcessed.Load(),
		TotalErrors:     p.totalErrors.Load(),
		TotalSuperseded: p.totalSuperseded.Load(),
		TotalDeferred:   p.totalDeferred.Load(),
		InFlight:        p.inFlight.Load(),
	}
	if n := p.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := p.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	p.lastErrorMu.Lock()
	st.LastError = p.lastError
	p.lastErrorMu.Unlock()
	return st
}

func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			p.runOnce(ctx)
		case <-p.triggerCh:
			p.runOnce(ctx)
		}
	}
}

func (p *Poller) runOnce(ctx context.Context) {
	now := time.Now().UTC()
	p.lastCycleUnixNano.Store(now.UnixNano())

	jobs, err := p.repo.ClaimStaleTrips(ctx, now, p.batchSize, p.lease)
	if err != nil {
		slog.Error("claim stale trips", "error", err.Error())
		p.setLastError(err)
		return
	}
	p.totalClaimed.Add(int64(len(jobs)))

	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup
	for _, job := range jobs {
		sem <- struct{}{}
		wg.Add(1)
		p.inFlight.Add(1)
		go func() {
			defer func() {
				p.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			if err := p.processOne(ctx, job); err != nil {
				p.totalErrors.Add(1)
				p.setLastError(err)
				slog.Error("project trip", "trip_uid", job.TripUID, "fail_count", job.FailCount, "error", err.Error())
			}
			p.totalProcessed.Add(1)
		}()
	}
	wg.Wait()
}

func (p *Poller) processOne(ctx context.Context, job *models.ProjectionJob) error {
	now := time.Now().UTC()

	if p.rl != nil && p.rateLimitPerMinute > 0 {
		minuteKey := fmt.Sprintf("rl:projector:%s", now.Format("200601021504"))
		allowed, n, err := p.rl.Allow(ctx, minuteKey, p.rateLimitPerMinute, 70*time.Second)
		if err != nil {
			return err
		}
		if !allowed {
			// left leased; it is claimed again once the lease runs out
			p.totalDeferred.Add(1)
			slog.Warn("projector rate limit exceeded", "trip_uid", job.TripUID, "count", n)
			return nil
		}
	}

	if err := p.warmer.WarmProjections(ctx, job.TripUID); err != nil {
		nextAt := now.Add(p.planner.BackoffDelay(job.FailCount + 1))
		if ferr := p.repo.FailProjection(ctx, job.TripUID, err.Error(), nextAt, job.LeaseUntil); ferr != nil {
			return errors.Wrap(ferr, "reschedule projection")
		}
		return errors.Wrap(err, "warm projections")
	}

	done, err := p.repo.CompleteProjection(ctx, job.TripUID, job.LeaseUntil)
	if err != nil {
		return err
	}
	if !done {
		// changed again while leased; stays due for the next cycle
		p.totalSuperseded.Add(1)
	}
	return nil
}

func (p *Poller) setLastError(err error) {
	p.lastErrorMu.Lock()
	p.lastError = err.Error()
	p.lastErrorMu.Unlock()
}
