// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// PasswordReset is a pending reset. The raw token is never stored: LookupHash
// finds the record, CredentialHash authenticates the token.
type PasswordReset struct {
	ID             ulid.ULID
	IdentityID     ulid.ULID
	LookupHash     string
	CredentialHash string
	ExpiresAt      time.Time
	CreatedAt      time.Time
}

// NewPasswordReset creates a reset record.
func NewPasswordReset(identityID ulid.ULID, lookupHash, credentialHash string, now time.Time, ttl time.Duration) (*PasswordReset, error) {
	if identityID.IsZero() {
		return nil, oops.Code("RESET_INVALID").Errorf("identity ID cannot be zero")
	}
	if lookupHash == "" || credentialHash == "" {
		return nil, oops.Code("RESET_INVALID").Errorf("reset hashes cannot be empty")
	}
	if ttl <= 0 {
		return nil, oops.Code("RESET_INVALID").With("ttl", ttl).Errorf("reset ttl must be positive")
	}
	return &PasswordReset{
		ID:             ulid.Make(),
		IdentityID:     identityID,
		LookupHash:     lookupHash,
		CredentialHash: credentialHash,
		ExpiresAt:      now.Add(ttl),
		CreatedAt:      now,
	}, nil
}

// IsExpiredAt reports whether the reset has expired as of now.
func (r *PasswordReset) IsExpiredAt(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// PasswordResetRepository manages password reset persistence.
type PasswordResetRepository interface {
	// Create stores a new reset.
	Create(ctx context.Context, reset *PasswordReset) error

	// GetByLookupHash retrieves a reset by its lookup hash.
	// Returns ErrNotFound if absent.
	GetByLookupHash(ctx context.Context, lookupHash string) (*PasswordReset, error)

	// Delete removes a reset. Returns ErrNotFound if no row was deleted.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteByIdentity removes all resets for an identity.
	DeleteByIdentity(ctx context.Context, identityID ulid.ULID) (int64, error)

	// DeleteExpired removes resets that expired at or before the given time.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// ResetNotification is handed to the dispatcher when a reset is requested.
type ResetNotification struct {
	Email string
	Token string
}

// ResetNotifier delivers reset tokens out of band. Implementations should
// enqueue and return; delivery failures never reach the requester.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, n ResetNotification) error
}
