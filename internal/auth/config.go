// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth

import (
	"time"

	"github.com/samber/oops"
)

// Config holds lifecycle policy. It is passed by value and never mutated
// after a service is constructed.
type Config struct {
	// AccessTTL is the lifetime of access tokens.
	AccessTTL time.Duration
	// RefreshTTL is the lifetime of refresh records and their bearers.
	RefreshTTL time.Duration
	// ResetTTL is the lifetime of password reset records.
	ResetTTL time.Duration
	// ResetTokenBytes is the entropy of raw reset tokens.
	ResetTokenBytes int
	// RevokeSessionsOnReset deletes every refresh record for the identity
	// when a password reset is confirmed.
	RevokeSessionsOnReset bool
}

// DefaultConfig returns the default lifecycle policy.
func DefaultConfig() Config {
	return Config{
		AccessTTL:             15 * time.Minute,
		RefreshTTL:            7 * 24 * time.Hour,
		ResetTTL:              time.Hour,
		ResetTokenBytes:       MinOpaqueTokenBytes,
		RevokeSessionsOnReset: true,
	}
}

// Validate rejects unusable policy values.
func (c Config) Validate() error {
	if c.AccessTTL <= 0 {
		return oops.Code("AUTH_INVALID_CONFIG").With("access_ttl", c.AccessTTL).Errorf("access ttl must be positive")
	}
	if c.RefreshTTL < time.Second {
		return oops.Code("AUTH_INVALID_CONFIG").With("refresh_ttl", c.RefreshTTL).Errorf("refresh ttl must be at least one second")
	}
	if c.ResetTTL <= 0 {
		return oops.Code("AUTH_INVALID_CONFIG").With("reset_ttl", c.ResetTTL).Errorf("reset ttl must be positive")
	}
	if c.ResetTokenBytes < MinOpaqueTokenBytes {
		return oops.Code("AUTH_INVALID_CONFIG").
			With("reset_token_bytes", c.ResetTokenBytes).
			Errorf("reset tokens need at least %d bytes", MinOpaqueTokenBytes)
	}
	return nil
}
