// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/authcore/authcore/internal/auth"
	"github.com/authcore/authcore/internal/config"
	"github.com/authcore/authcore/internal/observability"
)

// SweepRunner wraps the methods used from auth.Sweeper.
type SweepRunner interface {
	Sweep(ctx context.Context) (auth.SweepResult, error)
	Run(ctx context.Context, interval time.Duration) error
}

// SweepDeps contains injectable dependencies for the sweep command.
// All fields with nil values will use their default implementations.
type SweepDeps struct {
	// SweeperFactory builds a sweeper and a release func for its resources.
	// Default: openStack
	SweeperFactory func(ctx context.Context, cfg config.Config, logger *slog.Logger, metrics *observability.Metrics) (SweepRunner, func(), error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory ObservabilityServerFactory
}

func (d *SweepDeps) withDefaults() *SweepDeps {
	if d == nil {
		d = &SweepDeps{}
	}
	if d.SweeperFactory == nil {
		d.SweeperFactory = func(ctx context.Context, cfg config.Config, logger *slog.Logger, metrics *observability.Metrics) (SweepRunner, func(), error) {
			s, err := openStack(ctx, cfg, logger, metrics)
			if err != nil {
				return nil, nil, err
			}
			return s.sweeper, s.Close, nil
		}
	}
	if d.ObservabilityServerFactory == nil {
		d.ObservabilityServerFactory = defaultObservabilityServer
	}
	return d
}

type sweepOptions struct {
	once     bool
	interval time.Duration
}

// NewSweepCmd creates the sweep command.
func NewSweepCmd() *cobra.Command {
	return newSweepCmd(nil)
}

func newSweepCmd(deps *SweepDeps) *cobra.Command {
	opts := &sweepOptions{}
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired refresh tokens and password resets",
		Long: `Delete expired refresh token and password reset records. By default
the sweep repeats every sweep.interval until interrupted; --once runs a
single pass and exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSweepWithDeps(cmd.Context(), cmd, opts, deps)
		},
	}
	cmd.Flags().BoolVar(&opts.once, "once", false, "run a single sweep and exit")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "sweep interval (default: sweep.interval from config)")
	cmd.Flags().String("metrics-addr", "", "metrics/health HTTP address (default: metrics.addr from config, empty = disabled)")
	return cmd
}

func runSweepWithDeps(ctx context.Context, cmd *cobra.Command, opts *sweepOptions, deps *SweepDeps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if opts.interval > 0 {
		cfg.Sweep.Interval = opts.interval
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(ctx)
	defer cancel()

	metricsAddr := cfg.Metrics.Addr
	if opts.once {
		metricsAddr = ""
	}
	d, err := startDaemon(ctx, cancel, metricsAddr, deps.ObservabilityServerFactory, logger)
	if err != nil {
		return err
	}
	defer d.stop()

	sweeper, release, err := deps.SweeperFactory(ctx, cfg, logger, d.metrics)
	if err != nil {
		return err
	}
	defer release()

	if opts.once {
		result, err := sweeper.Sweep(ctx)
		if err != nil {
			return err //nolint:wrapcheck // already coded
		}
		cmd.Printf("Deleted %d refresh tokens and %d password resets\n", result.RefreshTokens, result.PasswordResets)
		return nil
	}

	d.ready.Store(true)
	logger.Info("sweeper started", "interval", cfg.Sweep.Interval)
	if err := sweeper.Run(ctx, cfg.Sweep.Interval); err != nil {
		return err //nolint:wrapcheck // already coded
	}
	logger.Info("sweeper stopped")
	return nil
}
