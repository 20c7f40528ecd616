package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/TripFlow/internal/api/tripsapi"
	"github.com/BearBump/TripFlow/internal/broker/messages"
	"github.com/BearBump/TripFlow/internal/services/trips"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
)

type tripAPIOpts struct {
	httpAddr    string
	swaggerPath string

	topic         string
	consumerGroup string

	onListen func(httpAddr string)
}

type tripService interface {
	tripsapi.Service
	ApplyTripUpdated(ctx context.Context, msg messages.TripUpdated) error
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

func runTripAPI(ctx context.Context, opts tripAPIOpts, svc tripService, consumer kafkaConsumer) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpLis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(httpLis.Addr().String())
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, httpLis, svc, opts.swaggerPath)
	}()

	consumerErr := make(chan error, 1)
	go func() {
		slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
		consumerErr <- consumer.Consume(ctx, tripUpdatedHandler(ctx, svc))
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		return err
	case err := <-consumerErr:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Error("kafka consumer stopped", "topic", opts.topic, "error", fmt.Sprint(err))
		return fmt.Errorf("consume %s: %w", opts.topic, err)
	}
}

// tripUpdatedHandler skips messages that can never be applied so they do not
// block the partition. Other failures are returned for the consumer to retry.
func tripUpdatedHandler(ctx context.Context, svc tripService) func(key, value []byte) error {
	return func(_key, value []byte) error {
		var m messages.TripUpdated
		if err := json.Unmarshal(value, &m); err != nil {
			slog.Warn("skip malformed trip update", "error", err.Error())
			return nil
		}
		if err := svc.ApplyTripUpdated(ctx, m); err != nil {
			if errors.Is(err, trips.ErrInvalidArgument) {
				slog.Warn("skip invalid trip update", "trip_uid", m.TripUID, "error", err.Error())
				return nil
			}
			return err
		}
		return nil
	}
}

func newRouter(svc tripsapi.Service, swaggerPath string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, swaggerPath)
	})
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger.json"),
	))

	tripsapi.New(svc).Register(r)
	return r
}

func runHTTPServer(ctx context.Context, lis net.Listener, svc tripsapi.Service, swaggerPath string) error {
	srv := &http.Server{
		Handler:           newRouter(svc, swaggerPath),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	err := srv.Serve(lis)
	if errors.Is(err, http.ErrServerClosed) {
		return ctx.Err()
	}
	return err
}
