// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/authcore/authcore/internal/config"
	"github.com/authcore/authcore/internal/notify"
)

// NotificationConsumer wraps the methods used from notify.Consumer.
type NotificationConsumer interface {
	Run(ctx context.Context) error
	Close() error
}

// WorkerDeps contains injectable dependencies for the worker command.
// All fields with nil values will use their default implementations.
type WorkerDeps struct {
	// ConsumerFactory creates the Kafka consumer.
	// Default: notify.NewConsumer
	ConsumerFactory func(cfg notify.ConsumerConfig, sender notify.Sender, opts ...notify.Option) (NotificationConsumer, error)

	// SenderFactory creates the delivery channel selected by notify.sender.
	// Default: newSender
	SenderFactory func(cfg config.Config, logger *slog.Logger) (notify.Sender, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory ObservabilityServerFactory
}

func (d *WorkerDeps) withDefaults() *WorkerDeps {
	if d == nil {
		d = &WorkerDeps{}
	}
	if d.ConsumerFactory == nil {
		d.ConsumerFactory = func(cfg notify.ConsumerConfig, sender notify.Sender, opts ...notify.Option) (NotificationConsumer, error) {
			return notify.NewConsumer(cfg, sender, opts...)
		}
	}
	if d.SenderFactory == nil {
		d.SenderFactory = newSender
	}
	if d.ObservabilityServerFactory == nil {
		d.ObservabilityServerFactory = defaultObservabilityServer
	}
	return d
}

// NewWorkerCmd creates the worker command.
func NewWorkerCmd() *cobra.Command {
	return newWorkerCmd(nil)
}

func newWorkerCmd(deps *WorkerDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Deliver password reset notifications from Kafka",
		Long: `Consume password reset requests published by the kafka notification
backend and deliver them. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorkerWithDeps(cmd.Context(), cmd, deps)
		},
	}
	cmd.Flags().StringSlice("kafka-brokers", nil, "Kafka broker addresses (default: notify.kafka.brokers from config)")
	cmd.Flags().String("kafka-topic", "", "Kafka topic (default: notify.kafka.topic from config)")
	cmd.Flags().String("sender", "", "delivery channel: smtp or log (default: notify.sender from config)")
	cmd.Flags().String("metrics-addr", "", "metrics/health HTTP address (default: metrics.addr from config, empty = disabled)")
	return cmd
}

func runWorkerWithDeps(ctx context.Context, cmd *cobra.Command, deps *WorkerDeps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := validateWorker(cfg); err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(ctx)
	defer cancel()

	d, err := startDaemon(ctx, cancel, cfg.Metrics.Addr, deps.ObservabilityServerFactory, logger)
	if err != nil {
		return err
	}
	defer d.stop()

	sender, err := deps.SenderFactory(cfg, logger)
	if err != nil {
		return err
	}

	policy := notify.DefaultRetryPolicy()
	policy.MaxRetries = cfg.Notify.MaxRetries
	consumer, err := deps.ConsumerFactory(notify.ConsumerConfig{
		Brokers: cfg.Notify.Kafka.Brokers,
		GroupID: cfg.Notify.Kafka.GroupID,
		Topic:   cfg.Notify.Kafka.Topic,
	}, sender,
		notify.WithLogger(logger),
		notify.WithRecorder(d.metrics),
		notify.WithRetryPolicy(policy),
	)
	if err != nil {
		return oops.With("operation", "create kafka consumer").Wrap(err)
	}
	defer func() {
		if closeErr := consumer.Close(); closeErr != nil {
			logger.Warn("error closing kafka consumer", "error", closeErr)
		}
	}()

	d.ready.Store(true)
	cmd.Println("Notification worker started")
	logger.Info("notification worker started",
		"brokers", cfg.Notify.Kafka.Brokers,
		"topic", cfg.Notify.Kafka.Topic,
		"group_id", cfg.Notify.Kafka.GroupID,
	)

	if err := consumer.Run(ctx); err != nil {
		return err //nolint:wrapcheck // already coded
	}
	logger.Info("notification worker stopped")
	return nil
}

// validateWorker checks only what the worker uses. It needs no database or
// signing secret.
func validateWorker(cfg config.Config) error {
	if len(cfg.Notify.Kafka.Brokers) == 0 {
		return oops.Code("CONFIG_INVALID").With("key", "notify.kafka.brokers").Errorf("worker needs at least one kafka broker")
	}
	if cfg.Notify.Kafka.Topic == "" || cfg.Notify.Kafka.GroupID == "" {
		return oops.Code("CONFIG_INVALID").With("key", "notify.kafka").Errorf("worker needs a kafka topic and group id")
	}
	return nil
}
