// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authcore/authcore/internal/auth"
	"github.com/authcore/authcore/pkg/errutil"
)

func TestGenerateOpaqueToken(t *testing.T) {
	t.Run("encodes requested entropy as base64url", func(t *testing.T) {
		token, err := auth.GenerateOpaqueToken(32)
		require.NoError(t, err)
		assert.Len(t, token, 43)

		raw, err := base64.RawURLEncoding.DecodeString(token)
		require.NoError(t, err)
		assert.Len(t, raw, 32)
	})

	t.Run("generates unique tokens", func(t *testing.T) {
		a, err := auth.GenerateOpaqueToken(32)
		require.NoError(t, err)
		b, err := auth.GenerateOpaqueToken(32)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("rejects fewer than 32 bytes", func(t *testing.T) {
		_, err := auth.GenerateOpaqueToken(16)
		errutil.AssertErrorCode(t, err, "OPAQUE_TOKEN_TOO_SHORT")
	})
}

func TestLookupHash(t *testing.T) {
	t.Run("is deterministic", func(t *testing.T) {
		assert.Equal(t, auth.LookupHash("token"), auth.LookupHash("token"))
	})

	t.Run("is hex sha256", func(t *testing.T) {
		assert.Equal(t,
			"3c469e9d6c5875d37a43f353d4f88e61fcf812c66eee3457465a40b0da4153e0",
			auth.LookupHash("token"))
	})

	t.Run("differs per token", func(t *testing.T) {
		assert.NotEqual(t, auth.LookupHash("token-a"), auth.LookupHash("token-b"))
	})
}
