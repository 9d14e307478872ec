// Copyright 2025 Outreach Corporation. All Rights Reserved.

// Description:

// Package server:
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/awinterman/anarchoresp/capture"
	"github.com/awinterman/anarchoresp/metrics"
	"github.com/awinterman/anarchoresp/protocol"
)

// Run parses the command line and environment into a Config and serves until
// ctx is done.
func Run(ctx context.Context) error {
	config := &Config{}
	if err := config.Parse(); err != nil {
		return err
	}
	return RunConfig(ctx, config)
}

// RunConfig serves config until ctx is done. Reaching the end of ctx is not an
// error.
func RunConfig(ctx context.Context, config *Config) error {
	log, err := NewLogger(os.Stderr, config.LogLevel, config.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	handler := &Handler{
		Decoder:     config.Decoder(),
		IdleTimeout: config.IdleTimeout,
		Metrics:     metrics.New(),
		Log:         log.With("comp", "handler"),
	}

	var sinks []capture.Sink
	if len(config.KafkaBrokers) > 0 {
		kafka, err := capture.NewKafkaSink("anarchoresp", config.KafkaBrokers, config.CaptureTopic)
		if err != nil {
			return fmt.Errorf("kafka capture: %w", err)
		}
		defer kafka.Close()
		sinks = append(sinks, kafka)
	}
	if config.CaptureDir != "" {
		store, err := capture.OpenBadger(config.CaptureDir, log.With("comp", "capture"))
		if err != nil {
			return fmt.Errorf("badger capture: %w", err)
		}
		defer store.Close()
		sinks = append(sinks, store)
	}
	switch len(sinks) {
	case 0:
	case 1:
		handler.Capture = sinks[0]
	default:
		handler.Capture = capture.Tee(sinks...)
	}

	if config.Upstream != "" {
		proxy, err := NewProxy(config.Upstream, config.PoolSize, protocol.ConnOptions{Decoder: config.Decoder()})
		if err != nil {
			return fmt.Errorf("upstream: %w", err)
		}
		defer proxy.Close()
		handler.Upstream = proxy
	}

	srv, err := New(ctx, config, handler.ServeConn)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(ctx)
	})
	if config.MetricsAddress != "" {
		g.Go(func() error {
			return serveMetrics(ctx, config.MetricsAddress, handler.Metrics)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		log.Info("shut down", "cause", err)
		return nil
	}
	return err
}

func serveMetrics(ctx context.Context, addr string, c *metrics.Collector) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	hs := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	})
	defer stop()

	slog.Info("serving metrics", "addr", addr)
	if err := hs.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}
