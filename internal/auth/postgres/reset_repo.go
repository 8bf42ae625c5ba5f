// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/authcore/authcore/internal/auth"
)

// PasswordResetRepository implements auth.PasswordResetRepository using PostgreSQL.
type PasswordResetRepository struct {
	db DB
}

// NewPasswordResetRepository creates a new PasswordResetRepository.
func NewPasswordResetRepository(db DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

// Create stores a new password reset request.
func (r *PasswordResetRepository) Create(ctx context.Context, reset *auth.PasswordReset) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		INSERT INTO password_resets (id, identity_id, lookup_hash, credential_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		reset.ID.String(),
		reset.IdentityID.String(),
		reset.LookupHash,
		reset.CredentialHash,
		reset.ExpiresAt,
		reset.CreatedAt,
	)
	if err != nil {
		return oops.Code("RESET_CREATE_FAILED").
			With("operation", "insert password_reset").
			With("identity_id", reset.IdentityID.String()).
			Wrap(err)
	}
	return nil
}

// GetByLookupHash retrieves a reset request by its lookup hash.
func (r *PasswordResetRepository) GetByLookupHash(ctx context.Context, lookupHash string) (*auth.PasswordReset, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `
		SELECT id, identity_id, lookup_hash, credential_hash, expires_at, created_at
		FROM password_resets
		WHERE lookup_hash = $1
	`, lookupHash)

	reset, err := scanReset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return reset, nil
}

// Delete removes a password reset request.
func (r *PasswordResetRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := conn(ctx, r.db).Exec(ctx, `
		DELETE FROM password_resets WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("RESET_DELETE_FAILED").
			With("operation", "delete password_reset").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("RESET_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteByIdentity removes all reset requests for an identity.
func (r *PasswordResetRepository) DeleteByIdentity(ctx context.Context, identityID ulid.ULID) (int64, error) {
	result, err := conn(ctx, r.db).Exec(ctx, `
		DELETE FROM password_resets WHERE identity_id = $1
	`, identityID.String())
	if err != nil {
		return 0, oops.Code("RESET_DELETE_BY_IDENTITY_FAILED").
			With("operation", "delete password_resets by identity").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// DeleteExpired removes reset requests that expired at or before the given time.
func (r *PasswordResetRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := conn(ctx, r.db).Exec(ctx, `
		DELETE FROM password_resets WHERE expires_at <= $1
	`, before)
	if err != nil {
		return 0, oops.Code("RESET_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired password_resets").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanReset scans a single row into a PasswordReset.
// Callers are responsible for handling pgx.ErrNoRows.
func scanReset(row pgx.Row) (*auth.PasswordReset, error) {
	var (
		idStr          string
		identityIDStr  string
		lookupHash     string
		credentialHash string
		expiresAt      time.Time
		createdAt      time.Time
	)

	err := row.Scan(&idStr, &identityIDStr, &lookupHash, &credentialHash, &expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("RESET_SCAN_FAILED").
			With("operation", "scan password_reset").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_ID").
			With("operation", "parse reset id").
			With("id", idStr).
			Wrap(err)
	}

	identityID, err := ulid.Parse(identityIDStr)
	if err != nil {
		return nil, oops.Code("RESET_INVALID_IDENTITY_ID").
			With("operation", "parse identity id").
			With("identity_id", identityIDStr).
			Wrap(err)
	}

	return &auth.PasswordReset{
		ID:             id,
		IdentityID:     identityID,
		LookupHash:     lookupHash,
		CredentialHash: credentialHash,
		ExpiresAt:      expiresAt,
		CreatedAt:      createdAt,
	}, nil
}

// Compile-time interface check.
var _ auth.PasswordResetRepository = (*PasswordResetRepository)(nil)
