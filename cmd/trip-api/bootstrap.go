package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/TripFlow/config"
	"github.com/BearBump/TripFlow/internal/broker/kafka"
	"github.com/BearBump/TripFlow/internal/cache/rediscache"
	"github.com/BearBump/TripFlow/internal/services/trips"
	"github.com/BearBump/TripFlow/internal/storage/pgtrips"
)

type tripAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     tripAPIOpts
	svc      *trips.Service
	consumer *kafka.Consumer
	closers  []func()
}

func mustBootstrapTripAPI() *tripAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("failed to parse config, %v", err))
	}

	httpAddr := cfg.TripFlow.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.TripFlow.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "trip-api"
	}
	consumerAttempts := cfg.TripFlow.KafkaConsumerAttempts
	if consumerAttempts <= 0 {
		consumerAttempts = 5
	}
	updatedTopic := cfg.Kafka.TripUpdatedTopicName
	if updatedTopic == "" {
		updatedTopic = "trip.updated"
	}

	opts := trips.DefaultOptions()
	if cfg.Kafka.TripChangedTopicName != "" {
		opts.ChangedTopic = cfg.Kafka.TripChangedTopicName
	}
	if cfg.TripFlow.ProjectionTTLSeconds > 0 {
		opts.ProjectionTTL = time.Duration(cfg.TripFlow.ProjectionTTLSeconds) * time.Second
	}
	if cfg.TripFlow.ReorderRateLimitPerMinute > 0 {
		opts.ReorderLimitPerMinute = int64(cfg.TripFlow.ReorderRateLimitPerMinute)
	}
	if cfg.TripFlow.PublishAttempts > 0 {
		opts.PublishAttempts = cfg.TripFlow.PublishAttempts
	}

	st := mustOpenPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second)

	rc := rediscache.New(cfg.Redis.Addr())
	rl := rediscache.NewRateLimiter(cfg.Redis.Addr())
	producer := kafka.NewProducer(cfg.Kafka.Brokers())

	svc := trips.New(st, rc, producer, rl, opts)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers(), updatedTopic, consumerGroup).
		WithRetry(consumerAttempts, 500*time.Millisecond)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &tripAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: tripAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   swaggerPath,
			topic:         updatedTopic,
			consumerGroup: consumerGroup,
		},
		svc:      svc,
		consumer: consumer,
		closers: []func(){
			func() { _ = consumer.Close() },
			func() { _ = producer.Close() },
			func() { _ = rl.Close() },
			func() { _ = rc.Close() },
			st.Close,
		},
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgtrips.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgtrips.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *tripAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for _, c := range a.closers {
		c()
	}
}

func (a *tripAPIApp) Run() error {
	return runTripAPI(a.ctx, a.opts, a.svc, a.consumer)
}
