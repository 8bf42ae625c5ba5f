// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// RefreshToken is the stored record behind a refresh bearer token. The
// bearer carries JTI; possession of a bearer whose record is gone proves
// nothing.
type RefreshToken struct {
	ID         ulid.ULID
	IdentityID ulid.ULID
	JTI        string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// NewRefreshToken creates a record with a fresh jti. The expiry is truncated
// to whole seconds so it matches the signed exp claim exactly.
func NewRefreshToken(identityID ulid.ULID, now time.Time, ttl time.Duration) (*RefreshToken, error) {
	if identityID.IsZero() {
		return nil, oops.Code("REFRESH_INVALID").Errorf("identity ID cannot be zero")
	}
	if ttl <= 0 {
		return nil, oops.Code("REFRESH_INVALID").With("ttl", ttl).Errorf("refresh ttl must be positive")
	}
	return &RefreshToken{
		ID:         ulid.Make(),
		IdentityID: identityID,
		JTI:        uuid.NewString(),
		ExpiresAt:  now.Add(ttl).Truncate(time.Second),
		CreatedAt:  now,
	}, nil
}

// IsExpiredAt reports whether the record has expired as of now. A record is
// expired at its expiry instant.
func (r *RefreshToken) IsExpiredAt(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// RefreshTokenRepository manages refresh token persistence.
type RefreshTokenRepository interface {
	// Create stores a new record.
	Create(ctx context.Context, token *RefreshToken) error

	// GetByJTI finds the record for identityID with the given jti.
	// Returns ErrNotFound if absent.
	GetByJTI(ctx context.Context, identityID ulid.ULID, jti string) (*RefreshToken, error)

	// Delete removes a record. Returns ErrNotFound if no row was deleted,
	// which is how a concurrent redemption loses.
	Delete(ctx context.Context, id ulid.ULID) error

	// DeleteByIdentity removes every record for an identity.
	DeleteByIdentity(ctx context.Context, identityID ulid.ULID) (int64, error)

	// DeleteExpired removes records that expired at or before the given time.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
