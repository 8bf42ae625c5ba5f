// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/authcore/authcore/internal/auth"
	"github.com/authcore/authcore/internal/auth/authtest"
	"github.com/authcore/authcore/pkg/errutil"
)

func newTestSweeper(t *testing.T, f *fixture) *auth.Sweeper {
	t.Helper()
	sweeper, err := auth.NewSweeper(f.store.RefreshTokens(), f.store.Resets(),
		auth.WithClock(f.clock.Now),
		auth.WithRecorder(f.recorder),
	)
	require.NoError(t, err)
	return sweeper
}

func TestNewSweeper_RequiresRepositories(t *testing.T) {
	store := authtest.NewStore()

	_, err := auth.NewSweeper(nil, store.Resets())
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_CONFIG")
	_, err = auth.NewSweeper(store.RefreshTokens(), nil)
	errutil.AssertErrorCode(t, err, "AUTH_INVALID_CONFIG")
}

func TestSweeper_Sweep(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, func(c *auth.Config) {
		c.ResetTTL = time.Hour
		c.RefreshTTL = 2 * time.Hour
	})
	f.register(t, "a@x.com", "pw12345")
	f.login(t, "a@x.com", "pw12345")
	f.requestToken(t, "a@x.com")

	sweeper := newTestSweeper(t, f)

	result, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, auth.SweepResult{}, result)

	f.clock.Advance(time.Hour)
	result, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, auth.SweepResult{PasswordResets: 1}, result)

	f.clock.Advance(time.Hour)
	result, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, auth.SweepResult{RefreshTokens: 1}, result)

	refresh, resets := f.store.Counts()
	assert.Zero(t, refresh)
	assert.Zero(t, resets)
	assert.Equal(t, int64(1), f.recorder.Swept(auth.SweepKindRefreshTokens))
	assert.Equal(t, int64(1), f.recorder.Swept(auth.SweepKindPasswordResets))
}

func TestSweeper_SweepFailure(t *testing.T) {
	f := newFixture(t)
	f.store.Fail("Resets.DeleteExpired", errors.New("timeout"))

	_, err := newTestSweeper(t, f).Sweep(context.Background())
	errutil.AssertErrorCode(t, err, "SWEEP_FAILED")
	errutil.AssertErrorContext(t, err, "kind", auth.SweepKindPasswordResets)
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	sweeper := newTestSweeper(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Run(ctx, 10*time.Millisecond) }()

	require.Eventually(t, func() bool {
		return f.recorder.Count("sweep", auth.OutcomeSuccess) >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeper_RunRejectsInterval(t *testing.T) {
	f := newFixture(t)
	err := newTestSweeper(t, f).Run(context.Background(), 0)
	errutil.AssertErrorCode(t, err, "SWEEP_INVALID_INTERVAL")
}
