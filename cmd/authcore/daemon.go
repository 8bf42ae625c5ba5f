// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/authcore/authcore/internal/observability"
)

const shutdownTimeout = 5 * time.Second

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
}

// ObservabilityServerFactory creates an observability server.
type ObservabilityServerFactory func(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

func defaultObservabilityServer(addr string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
	return observability.NewServer(addr, ready, logger)
}

// daemon holds the shared lifecycle of long-running commands.
type daemon struct {
	logger  *slog.Logger
	metrics *observability.Metrics
	obs     ObservabilityServer
	ready   atomic.Bool
}

// startDaemon starts the observability server when addr is set. Without a
// server the metrics are collected on a private registry.
func startDaemon(ctx context.Context, cancel context.CancelFunc, addr string, factory ObservabilityServerFactory, logger *slog.Logger) (*daemon, error) {
	d := &daemon{logger: logger}
	if addr == "" {
		d.metrics = observability.NewMetrics(prometheus.NewRegistry())
		return d, nil
	}

	d.obs = factory(addr, d.ready.Load, logger)
	errCh, err := d.obs.Start()
	if err != nil {
		return nil, oops.Code("OBSERVABILITY_START_FAILED").With("addr", addr).Wrap(err)
	}
	d.metrics = d.obs.Metrics()
	go monitorServerErrors(ctx, cancel, errCh, "observability", logger)
	return d, nil
}

// stop shuts the observability server down.
func (d *daemon) stop() {
	d.ready.Store(false)
	if d.obs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.obs.Stop(ctx); err != nil {
		d.logger.Warn("error stopping observability server", "error", err)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// monitorServerErrors cancels ctx when a server reports a fatal error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
