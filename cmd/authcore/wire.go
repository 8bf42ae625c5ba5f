// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/authcore/authcore/internal/auth"
	"github.com/authcore/authcore/internal/auth/postgres"
	"github.com/authcore/authcore/internal/config"
	"github.com/authcore/authcore/internal/notify"
	"github.com/authcore/authcore/internal/observability"
	"github.com/authcore/authcore/internal/store"
)

// stack is the fully wired service graph for one process.
type stack struct {
	pool       *pgxpool.Pool
	identities *postgres.IdentityRepository
	auth       *auth.Service
	resets     *auth.PasswordResetService
	sweeper    *auth.Sweeper
	closers    []func()
}

// Close releases everything the stack opened, in reverse order.
func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStack connects to the database and builds the services. metrics may
// be nil.
func openStack(ctx context.Context, cfg config.Config, logger *slog.Logger, metrics *observability.Metrics) (*stack, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err //nolint:wrapcheck // already coded
	}
	if err := cfg.Validate(); err != nil {
		return nil, err //nolint:wrapcheck // already coded
	}

	opts := []auth.Option{auth.WithLogger(logger)}
	notifyOpts := []notify.Option{notify.WithLogger(logger)}
	if metrics != nil {
		opts = append(opts, auth.WithRecorder(metrics))
		notifyOpts = append(notifyOpts, notify.WithRecorder(metrics))
	}

	pool, err := store.Open(ctx, cfg.DatabaseURL, cfg.Database.PoolConfig())
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	s := &stack{pool: pool, closers: []func(){pool.Close}}

	if err := s.build(ctx, cfg, opts, notifyOpts, logger); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *stack) build(ctx context.Context, cfg config.Config, opts []auth.Option, notifyOpts []notify.Option, logger *slog.Logger) error {
	hasher, err := auth.NewArgon2idHasher(cfg.Auth.Argon2Params(), auth.WithMaxConcurrent(cfg.Auth.MaxConcurrentHashes))
	if err != nil {
		return oops.With("operation", "create hasher").Wrap(err)
	}
	codec, err := auth.NewCodec([]byte(cfg.Auth.SecretKey), cfg.Auth.Algorithm)
	if err != nil {
		return oops.With("operation", "create codec").Wrap(err)
	}
	notifier, err := s.notifier(ctx, cfg, notifyOpts, logger)
	if err != nil {
		return err
	}

	s.identities = postgres.NewIdentityRepository(s.pool)
	refresh := postgres.NewRefreshTokenRepository(s.pool)
	resets := postgres.NewPasswordResetRepository(s.pool)
	tx := postgres.NewTransactor(s.pool)
	policy := cfg.Auth.Policy()

	s.auth, err = auth.NewService(auth.ServiceDeps{
		Identities:    s.identities,
		RefreshTokens: refresh,
		Transactor:    tx,
		Hasher:        hasher,
		Codec:         codec,
	}, policy, opts...)
	if err != nil {
		return oops.With("operation", "create auth service").Wrap(err)
	}

	s.resets, err = auth.NewPasswordResetService(auth.ResetServiceDeps{
		Identities:    s.identities,
		RefreshTokens: refresh,
		Resets:        resets,
		Transactor:    tx,
		Hasher:        hasher,
		Notifier:      notifier,
	}, policy, opts...)
	if err != nil {
		return oops.With("operation", "create reset service").Wrap(err)
	}

	s.sweeper, err = auth.NewSweeper(refresh, resets, opts...)
	if err != nil {
		return oops.With("operation", "create sweeper").Wrap(err)
	}
	return nil
}

// notifier builds the configured reset notifier and registers its shutdown.
func (s *stack) notifier(ctx context.Context, cfg config.Config, opts []notify.Option, logger *slog.Logger) (auth.ResetNotifier, error) {
	policy := notify.DefaultRetryPolicy()
	policy.MaxRetries = cfg.Notify.MaxRetries
	opts = append(opts, notify.WithRetryPolicy(policy))

	sender, err := newSender(cfg, logger)
	if err != nil {
		return nil, err
	}
	switch cfg.Notify.Backend {
	case config.NotifyKafka:
		pub, err := notify.NewPublisher(cfg.Notify.Kafka.Brokers, cfg.Notify.Kafka.Topic, opts...)
		if err != nil {
			return nil, oops.With("operation", "create kafka publisher").Wrap(err)
		}
		s.closers = append(s.closers, func() {
			if err := pub.Close(); err != nil {
				logger.Warn("close kafka publisher", "error", err)
			}
		})
		return pub, nil
	case config.NotifyQueue:
		q, err := notify.NewQueue(sender, cfg.Notify.QueueSize, cfg.Notify.Workers, opts...)
		if err != nil {
			return nil, oops.With("operation", "create notification queue").Wrap(err)
		}
		// Workers outlive the command context so Close can drain them.
		q.Start(context.WithoutCancel(ctx))
		s.closers = append(s.closers, q.Close)
		return q, nil
	default:
		return notifierFunc(func(ctx context.Context, n auth.ResetNotification) error {
			return sender.Send(ctx, notify.ResetRequest{Email: n.Email, Token: n.Token})
		}), nil
	}
}

// newSender builds the final delivery hop selected by notify.sender.
func newSender(cfg config.Config, logger *slog.Logger) (notify.Sender, error) {
	if cfg.Notify.Sender == config.SenderSMTP {
		sender, err := notify.NewSMTPSender(cfg.Notify.SMTP.SenderConfig(), notify.WithLogger(logger))
		if err != nil {
			return nil, oops.With("operation", "create smtp sender").Wrap(err)
		}
		return sender, nil
	}
	if cfg.Notify.LogTokens {
		logger.Warn("reset tokens are written to the log; use only in development")
	}
	return notify.LogSender{Logger: logger, RevealToken: cfg.Notify.LogTokens}, nil
}

// setActive looks up an identity by email and flips its active flag.
func (s *stack) setActive(ctx context.Context, email string, active bool) (*auth.Identity, error) {
	identity, err := s.identities.GetByEmail(ctx, auth.NormalizeEmail(email))
	if err != nil {
		return nil, err //nolint:wrapcheck // already coded
	}
	if err := s.identities.SetActive(ctx, identity.ID, active); err != nil {
		return nil, err //nolint:wrapcheck // already coded
	}
	identity.Active = active
	return identity, nil
}

// notifierFunc adapts a function to auth.ResetNotifier.
type notifierFunc func(ctx context.Context, n auth.ResetNotification) error

func (f notifierFunc) NotifyPasswordReset(ctx context.Context, n auth.ResetNotification) error {
	return f(ctx, n)
}
