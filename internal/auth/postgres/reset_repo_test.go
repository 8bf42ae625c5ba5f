// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authcore/authcore/internal/auth"
	"github.com/authcore/authcore/pkg/errutil"
)

func TestPasswordResetRepository_Create(t *testing.T) {
	now := time.Now().UTC()
	reset := &auth.PasswordReset{
		ID:             ulid.Make(),
		IdentityID:     ulid.Make(),
		LookupHash:     "lookup",
		CredentialHash: "credential",
		ExpiresAt:      now.Add(time.Hour),
		CreatedAt:      now,
	}

	t.Run("inserts record", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO password_resets`).
			WithArgs(reset.ID.String(), reset.IdentityID.String(), "lookup", "credential", reset.ExpiresAt, now).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, NewPasswordResetRepository(mock).Create(context.Background(), reset))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert failure", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`INSERT INTO password_resets`).
			WithArgs(reset.ID.String(), reset.IdentityID.String(), "lookup", "credential", reset.ExpiresAt, now).
			WillReturnError(errors.New("fk violation"))

		err = NewPasswordResetRepository(mock).Create(context.Background(), reset)
		errutil.AssertErrorCode(t, err, "RESET_CREATE_FAILED")
		errutil.AssertErrorContext(t, err, "identity_id", reset.IdentityID.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPasswordResetRepository_GetByLookupHash(t *testing.T) {
	cols := []string{"id", "identity_id", "lookup_hash", "credential_hash", "expires_at", "created_at"}
	id := ulid.Make()
	identityID := ulid.Make()
	now := time.Now().UTC()

	t.Run("found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`WHERE lookup_hash = \$1`).
			WithArgs("lookup").
			WillReturnRows(pgxmock.NewRows(cols).
				AddRow(id.String(), identityID.String(), "lookup", "credential", now.Add(time.Hour), now))

		got, err := NewPasswordResetRepository(mock).GetByLookupHash(context.Background(), "lookup")
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, identityID, got.IdentityID)
		assert.Equal(t, "credential", got.CredentialHash)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM password_resets`).
			WithArgs("lookup").
			WillReturnError(pgx.ErrNoRows)

		_, err = NewPasswordResetRepository(mock).GetByLookupHash(context.Background(), "lookup")
		assert.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "RESET_NOT_FOUND")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("corrupt id", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(`FROM password_resets`).
			WithArgs("lookup").
			WillReturnRows(pgxmock.NewRows(cols).
				AddRow("bad", identityID.String(), "lookup", "credential", now, now))

		_, err = NewPasswordResetRepository(mock).GetByLookupHash(context.Background(), "lookup")
		errutil.AssertErrorCode(t, err, "RESET_INVALID_ID")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPasswordResetRepository_Delete(t *testing.T) {
	id := ulid.Make()

	t.Run("missing row is not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM password_resets WHERE id = \$1`).
			WithArgs(id.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err = NewPasswordResetRepository(mock).Delete(context.Background(), id)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("by identity counts rows", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec(`DELETE FROM password_resets WHERE identity_id = \$1`).
			WithArgs(id.String()).
			WillReturnResult(pgxmock.NewResult("DELETE", 2))

		n, err := NewPasswordResetRepository(mock).DeleteByIdentity(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("expired failure", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		mock.ExpectExec(`DELETE FROM password_resets WHERE expires_at <= \$1`).
			WithArgs(cutoff).
			WillReturnError(errors.New("timeout"))

		_, err = NewPasswordResetRepository(mock).DeleteExpired(context.Background(), cutoff)
		errutil.AssertErrorCode(t, err, "RESET_DELETE_EXPIRED_FAILED")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
