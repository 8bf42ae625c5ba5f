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

// RefreshTokenRepository implements auth.RefreshTokenRepository using PostgreSQL.
type RefreshTokenRepository struct {
	db DB
}

// NewRefreshTokenRepository creates a new RefreshTokenRepository.
func NewRefreshTokenRepository(db DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Create stores a new refresh token record.
func (r *RefreshTokenRepository) Create(ctx context.Context, token *auth.RefreshToken) error {
	_, err := conn(ctx, r.db).Exec(ctx, `
		INSERT INTO refresh_tokens (id, identity_id, jti, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, token.ID.String(), token.IdentityID.String(), token.JTI, token.ExpiresAt, token.CreatedAt)
	if err != nil {
		return oops.Code("REFRESH_CREATE_FAILED").
			With("operation", "insert refresh_token").
			With("identity_id", token.IdentityID.String()).
			Wrap(err)
	}
	return nil
}

// GetByJTI retrieves the record for an identity and jti.
func (r *RefreshTokenRepository) GetByJTI(ctx context.Context, identityID ulid.ULID, jti string) (*auth.RefreshToken, error) {
	row := conn(ctx, r.db).QueryRow(ctx, `
		SELECT id, identity_id, jti, expires_at, created_at
		FROM refresh_tokens
		WHERE identity_id = $1 AND jti = $2
	`, identityID.String(), jti)

	token, err := scanRefreshToken(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("REFRESH_NOT_FOUND").
			With("identity_id", identityID.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return token, nil
}

// Delete removes a refresh token record.
func (r *RefreshTokenRepository) Delete(ctx context.Context, id ulid.ULID) error {
	result, err := conn(ctx, r.db).Exec(ctx, `
		DELETE FROM refresh_tokens WHERE id = $1
	`, id.String())
	if err != nil {
		return oops.Code("REFRESH_DELETE_FAILED").
			With("operation", "delete refresh_token").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("REFRESH_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// DeleteByIdentity removes all refresh tokens for an identity.
func (r *RefreshTokenRepository) DeleteByIdentity(ctx context.Context, identityID ulid.ULID) (int64, error) {
	result, err := conn(ctx, r.db).Exec(ctx, `
		DELETE FROM refresh_tokens WHERE identity_id = $1
	`, identityID.String())
	if err != nil {
		return 0, oops.Code("REFRESH_DELETE_BY_IDENTITY_FAILED").
			With("operation", "delete refresh_tokens by identity").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// DeleteExpired removes records that expired at or before the given time.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := conn(ctx, r.db).Exec(ctx, `
		DELETE FROM refresh_tokens WHERE expires_at <= $1
	`, before)
	if err != nil {
		return 0, oops.Code("REFRESH_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired refresh_tokens").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

// scanRefreshToken scans a single row into a RefreshToken.
// Callers are responsible for handling pgx.ErrNoRows.
func scanRefreshToken(row pgx.Row) (*auth.RefreshToken, error) {
	var (
		idStr         string
		identityIDStr string
		jti           string
		expiresAt     time.Time
		createdAt     time.Time
	)

	err := row.Scan(&idStr, &identityIDStr, &jti, &expiresAt, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // callers wrap with context-specific info
		}
		return nil, oops.Code("REFRESH_SCAN_FAILED").
			With("operation", "scan refresh_token").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("REFRESH_INVALID_ID").With("id", idStr).Wrap(err)
	}
	identityID, err := ulid.Parse(identityIDStr)
	if err != nil {
		return nil, oops.Code("REFRESH_INVALID_IDENTITY_ID").With("identity_id", identityIDStr).Wrap(err)
	}

	return &auth.RefreshToken{
		ID:         id,
		IdentityID: identityID,
		JTI:        jti,
		ExpiresAt:  expiresAt,
		CreatedAt:  createdAt,
	}, nil
}

var _ auth.RefreshTokenRepository = (*RefreshTokenRepository)(nil)
