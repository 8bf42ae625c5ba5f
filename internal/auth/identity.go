// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Identity is an account that can authenticate.
type Identity struct {
	ID           ulid.ULID
	Email        string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NormalizeEmail trims surrounding whitespace. Case is preserved for display;
// stores compare case-insensitively.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(email)
}

// ValidateEmail checks that email is a bare RFC 5322 address.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code("IDENTITY_INVALID_EMAIL").Wrapf(ErrInvalidInput, "email cannot be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return oops.Code("IDENTITY_INVALID_EMAIL").With("email", email).Wrapf(ErrInvalidInput, "invalid email address")
	}
	return nil
}

// NewIdentity creates an active Identity with a fresh ID.
func NewIdentity(email, passwordHash string, now time.Time) (*Identity, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code("IDENTITY_INVALID_PASSWORD_HASH").Errorf("password hash cannot be empty")
	}
	return &Identity{
		ID:           ulid.Make(),
		Email:        email,
		PasswordHash: passwordHash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// IdentityRepository manages identity persistence.
type IdentityRepository interface {
	// Create stores a new identity. Returns ErrAlreadyExists if the email
	// is taken, compared case-insensitively.
	Create(ctx context.Context, identity *Identity) error

	// GetByID retrieves an identity. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id ulid.ULID) (*Identity, error)

	// GetByEmail retrieves an identity by email, case-insensitively.
	// Returns ErrNotFound if absent.
	GetByEmail(ctx context.Context, email string) (*Identity, error)

	// UpdatePassword replaces the stored password hash.
	// Returns ErrNotFound if the identity does not exist.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// SetActive enables or disables an identity.
	// Returns ErrNotFound if the identity does not exist.
	SetActive(ctx context.Context, id ulid.ULID, active bool) error
}
