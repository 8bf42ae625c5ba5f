// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth_test

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/authcore/authcore/internal/auth"
	"github.com/authcore/authcore/internal/auth/authtest"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testArgon2Params() auth.Argon2Params {
	return auth.Argon2Params{Time: 1, MemoryKiB: 1024, Threads: 1, SaltLen: 16, KeyLen: 32}
}

func newTestHasher(t *testing.T) *auth.Argon2idHasher {
	t.Helper()
	h, err := auth.NewArgon2idHasher(testArgon2Params())
	require.NoError(t, err)
	return h
}

// testClock is a settable time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store    *authtest.Store
	notifier *authtest.Notifier
	recorder *authtest.Recorder
	logs     *bytes.Buffer

	// clock drives lifecycle expiry; codecClock drives token exp checks.
	clock      *testClock
	codecClock *testClock

	cfg    auth.Config
	hasher *auth.Argon2idHasher
	codec  *auth.Codec
	svc    *auth.Service
	resets *auth.PasswordResetService
}

func newFixture(t *testing.T, mutate ...func(*auth.Config)) *fixture {
	t.Helper()

	f := &fixture{
		store:      authtest.NewStore(),
		notifier:   &authtest.Notifier{},
		recorder:   &authtest.Recorder{},
		logs:       &bytes.Buffer{},
		clock:      newTestClock(),
		codecClock: newTestClock(),
		cfg:        auth.DefaultConfig(),
		hasher:     newTestHasher(t),
	}
	for _, m := range mutate {
		m(&f.cfg)
	}

	var err error
	f.codec, err = auth.NewCodec(testSecret, "HS256", auth.WithCodecClock(f.codecClock.Now))
	require.NoError(t, err)

	logger := slog.New(slog.NewJSONHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	opts := []auth.Option{
		auth.WithLogger(logger),
		auth.WithClock(f.clock.Now),
		auth.WithRecorder(f.recorder),
	}

	f.svc, err = auth.NewService(auth.ServiceDeps{
		Identities:    f.store.Identities(),
		RefreshTokens: f.store.RefreshTokens(),
		Transactor:    f.store.Transactor(),
		Hasher:        f.hasher,
		Codec:         f.codec,
	}, f.cfg, opts...)
	require.NoError(t, err)

	f.resets, err = auth.NewPasswordResetService(auth.ResetServiceDeps{
		Identities:    f.store.Identities(),
		RefreshTokens: f.store.RefreshTokens(),
		Resets:        f.store.Resets(),
		Transactor:    f.store.Transactor(),
		Hasher:        f.hasher,
		Notifier:      f.notifier,
	}, f.cfg, opts...)
	require.NoError(t, err)

	return f
}

// advance moves both clocks forward.
func (f *fixture) advance(d time.Duration) {
	f.clock.Advance(d)
	f.codecClock.Advance(d)
}

func (f *fixture) register(t *testing.T, email, password string) *auth.Identity {
	t.Helper()
	identity, err := f.svc.Register(context.Background(), email, password)
	require.NoError(t, err)
	return identity
}

func (f *fixture) login(t *testing.T, email, password string) *auth.TokenPair {
	t.Helper()
	pair, err := f.svc.Login(context.Background(), email, password)
	require.NoError(t, err)
	return pair
}

func (f *fixture) deactivate(t *testing.T, identity *auth.Identity) {
	t.Helper()
	require.NoError(t, f.store.Identities().SetActive(context.Background(), identity.ID, false))
}

func requireKind(t *testing.T, err error, kind auth.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, auth.KindOf(err), "unexpected kind for %v", err)
}
