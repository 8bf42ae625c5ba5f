// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authcore/authcore/internal/auth"
)

func TestService_Authenticate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	identity := f.register(t, "a@x.com", "pw12345")

	got, err := f.svc.Authenticate(ctx, "a@x.com", "pw12345")
	require.NoError(t, err)
	assert.Equal(t, identity.ID, got.ID)

	_, err = f.svc.Authenticate(ctx, "a@x.com", "")
	requireKind(t, err, auth.KindUnauthorized)

	_, err = f.svc.Authenticate(ctx, "", "pw12345")
	requireKind(t, err, auth.KindUnauthorized)

	// Authenticate never issues tokens.
	assert.Empty(t, f.store.RefreshTokensFor(identity.ID))
}

func TestService_RequireBearer(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves access token subject", func(t *testing.T) {
		f := newFixture(t)
		identity := f.register(t, "a@x.com", "pw12345")
		pair := f.login(t, "a@x.com", "pw12345")

		got, err := f.svc.RequireBearer(ctx, pair.AccessToken, auth.TokenTypeAccess)
		require.NoError(t, err)
		assert.Equal(t, identity.ID, got.ID)
	})

	t.Run("refresh endpoint expects refresh tokens", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "a@x.com", "pw12345")
		pair := f.login(t, "a@x.com", "pw12345")

		_, err := f.svc.RequireBearer(ctx, pair.RefreshToken, auth.TokenTypeRefresh)
		require.NoError(t, err)

		_, err = f.svc.RequireBearer(ctx, pair.RefreshToken, auth.TokenTypeAccess)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
		_, err = f.svc.RequireBearer(ctx, pair.AccessToken, auth.TokenTypeRefresh)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("failures are all invalid token", func(t *testing.T) {
		f := newFixture(t)
		f.register(t, "a@x.com", "pw12345")
		pair := f.login(t, "a@x.com", "pw12345")
		deleted, err := f.codec.EncodeRefresh(ulid.Make(), "jti", f.clock.Now().Add(time.Hour))
		require.NoError(t, err)
		ghost, _, err := f.codec.EncodeAccess(ulid.Make(), time.Minute)
		require.NoError(t, err)

		for name, token := range map[string]string{
			"garbage":        "garbage",
			"unknown access": ghost,
			"deleted":        deleted,
		} {
			t.Run(name, func(t *testing.T) {
				_, err := f.svc.RequireBearer(ctx, token, auth.TokenTypeAccess)
				assert.ErrorIs(t, err, auth.ErrInvalidToken)
			})
		}

		f.advance(f.cfg.AccessTTL)
		_, err = f.svc.RequireBearer(ctx, pair.AccessToken, auth.TokenTypeAccess)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("inactive identity still resolves", func(t *testing.T) {
		f := newFixture(t)
		identity := f.register(t, "a@x.com", "pw12345")
		pair := f.login(t, "a@x.com", "pw12345")
		f.deactivate(t, identity)

		got, err := f.svc.RequireBearer(ctx, pair.AccessToken, auth.TokenTypeAccess)
		require.NoError(t, err)
		assert.False(t, got.Active)
	})
}

func TestService_RequireActiveBearer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	identity := f.register(t, "a@x.com", "pw12345")
	pair := f.login(t, "a@x.com", "pw12345")

	got, err := f.svc.RequireActiveBearer(ctx, pair.AccessToken, auth.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, identity.ID, got.ID)

	f.deactivate(t, identity)
	_, err = f.svc.RequireActiveBearer(ctx, pair.AccessToken, auth.TokenTypeAccess)
	requireKind(t, err, auth.KindForbidden)

	_, err = f.svc.RequireActiveBearer(ctx, "garbage", auth.TokenTypeAccess)
	requireKind(t, err, auth.KindUnauthorized)
}
