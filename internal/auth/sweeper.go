// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth

import (
	"context"
	"time"

	"github.com/samber/oops"
)

// Sweep kinds.
const (
	SweepKindRefreshTokens  = "refresh_tokens"
	SweepKindPasswordResets = "password_resets"
)

// SweepRecorder is implemented by recorders that also count swept records.
type SweepRecorder interface {
	RecordSweep(kind string, deleted int64)
}

// SweepResult reports how many expired records a sweep deleted.
type SweepResult struct {
	RefreshTokens  int64
	PasswordResets int64
}

// Sweeper deletes expired refresh and reset records. Expired records are
// already rejected when presented, so sweeping only reclaims storage.
type Sweeper struct {
	refresh RefreshTokenRepository
	resets  PasswordResetRepository
	opts    options
}

// NewSweeper creates a Sweeper.
func NewSweeper(refresh RefreshTokenRepository, resets PasswordResetRepository, opts ...Option) (*Sweeper, error) {
	if refresh == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("refresh token repository is required")
	}
	if resets == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password reset repository is required")
	}
	return &Sweeper{refresh: refresh, resets: resets, opts: newOptions(opts)}, nil
}

// Sweep deletes every record that has expired as of now.
func (s *Sweeper) Sweep(ctx context.Context) (result SweepResult, err error) {
	ctx, end := s.opts.start(ctx, "sweep")
	defer func() { end(err) }()

	now := s.opts.now()

	result.RefreshTokens, err = s.refresh.DeleteExpired(ctx, now)
	if err != nil {
		return result, oops.Code("SWEEP_FAILED").With("kind", SweepKindRefreshTokens).Wrap(err)
	}
	s.record(SweepKindRefreshTokens, result.RefreshTokens)

	result.PasswordResets, err = s.resets.DeleteExpired(ctx, now)
	if err != nil {
		return result, oops.Code("SWEEP_FAILED").With("kind", SweepKindPasswordResets).Wrap(err)
	}
	s.record(SweepKindPasswordResets, result.PasswordResets)

	s.opts.logger.InfoContext(ctx, "swept expired records",
		"refresh_tokens", result.RefreshTokens,
		"password_resets", result.PasswordResets,
	)
	return result, nil
}

// Run sweeps immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return oops.Code("SWEEP_INVALID_INTERVAL").With("interval", interval).Errorf("sweep interval must be positive")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		// Sweep logs its own failures.
		_, _ = s.Sweep(ctx) //nolint:errcheck // retried on the next tick
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) record(kind string, deleted int64) {
	if r, ok := s.opts.recorder.(SweepRecorder); ok {
		r.RecordSweep(kind, deleted)
	}
}
