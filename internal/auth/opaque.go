// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"github.com/samber/oops"
)

// MinOpaqueTokenBytes is the least entropy an opaque token may carry.
const MinOpaqueTokenBytes = 32

// GenerateOpaqueToken returns n random bytes encoded as unpadded base64url.
func GenerateOpaqueToken(n int) (string, error) {
	if n < MinOpaqueTokenBytes {
		return "", oops.Code("OPAQUE_TOKEN_TOO_SHORT").
			With("bytes", n).
			Errorf("opaque tokens need at least %d bytes", MinOpaqueTokenBytes)
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", oops.Code("OPAQUE_TOKEN_GENERATE_FAILED").Wrap(err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// LookupHash returns the hex SHA-256 of raw. It is deterministic so a stored
// record can be found by the token a user presents; the slow credential hash
// is what actually authenticates the token.
func LookupHash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
