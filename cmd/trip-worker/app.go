package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/TripFlow/config"
	"github.com/BearBump/TripFlow/internal/cache"
	"github.com/BearBump/TripFlow/internal/cache/rediscache"
	"github.com/BearBump/TripFlow/internal/services/projector"
	"github.com/BearBump/TripFlow/internal/services/trips"
	"github.com/BearBump/TripFlow/internal/storage/pgtrips"
)

// workerStorage is what the projector claims from and the warmer reads from.
type workerStorage interface {
	projector.Repository
	trips.Repository
}

type workerFactories struct {
	newStorage     func(cfg *config.Config) (repo workerStorage, closeFn func(), err error)
	newCache       func(cfg *config.Config) cache.BytesCache
	newRateLimiter func(cfg *config.Config) projector.RateLimiter
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (workerStorage, func(), error) {
			st, err := pgtrips.New(cfg.Database.ConnString())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newCache: func(cfg *config.Config) cache.BytesCache {
			return rediscache.New(cfg.Redis.Addr())
		},
		newRateLimiter: func(cfg *config.Config) projector.RateLimiter {
			return rediscache.NewRateLimiter(cfg.Redis.Addr())
		},
	}
}

func RunTripWorker(ctx context.Context, cfg *config.Config, f workerFactories, httpOpts workerHTTPOpts) error {
	pollInterval := time.Duration(cfg.TripFlow.WorkerPollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	batchSize := cfg.TripFlow.WorkerBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	concurrency := cfg.TripFlow.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	lease := time.Duration(cfg.TripFlow.WorkerLeaseSeconds) * time.Second
	if lease <= 0 {
		lease = 120 * time.Second
	}
	rlPerMin := int64(cfg.TripFlow.WorkerRateLimitPerMinute)
	projectionTTL := time.Duration(cfg.TripFlow.ProjectionTTLSeconds) * time.Second
	if projectionTTL <= 0 {
		projectionTTL = 10 * time.Minute
	}

	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	warmer := trips.New(repo, f.newCache(cfg), nil, nil, trips.Options{ProjectionTTL: projectionTTL})

	p := projector.New(repo, warmer, f.newRateLimiter(cfg)).
		WithSettings(pollInterval, batchSize, concurrency, lease, rlPerMin).
		WithPlanner(projector.PlannerConfig{
			Backoff1:      time.Duration(cfg.TripFlow.WorkerBackoff1Seconds) * time.Second,
			Backoff2:      time.Duration(cfg.TripFlow.WorkerBackoff2Seconds) * time.Second,
			Backoff3:      time.Duration(cfg.TripFlow.WorkerBackoff3Seconds) * time.Second,
			Backoff4:      time.Duration(cfg.TripFlow.WorkerBackoff4Seconds) * time.Second,
			JitterPercent: cfg.TripFlow.WorkerBackoffJitterPercent,
		})

	if httpOpts.swaggerPath != "" {
		httpOpts.poller = p
		httpOpts.cfg = cfg
		go func() {
			if err := runWorkerHTTPServer(ctx, httpOpts); err != nil && ctx.Err() == nil {
				slog.Error("worker http server stopped", "error", err.Error())
			}
		}()
	}

	slog.Info("projector started", "poll_interval", pollInterval.String(), "batch_size", batchSize, "concurrency", concurrency)
	return p.Run(ctx)
}
