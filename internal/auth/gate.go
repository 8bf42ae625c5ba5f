// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"
)

// Authenticate checks email and password. An unknown email and a wrong
// password produce the same ErrUnauthorized after the same amount of hashing
// work. A correct password for an inactive identity is ErrForbidden.
func (s *Service) Authenticate(ctx context.Context, email, password string) (identity *Identity, err error) {
	ctx, end := s.opts.start(ctx, "authenticate")
	defer func() { end(err) }()

	return s.authenticate(ctx, email, password)
}

func (s *Service) authenticate(ctx context.Context, email, password string) (*Identity, error) {
	identity, err := s.identities.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get identity by email").
			Wrap(err)
	}

	target := s.dummyHash
	if identity != nil {
		target = identity.PasswordHash
	}

	// Always verify, including for unknown emails.
	valid := s.hasher.Verify(password, target)
	if identity == nil || !valid {
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(ErrUnauthorized)
	}

	// Checked after verification so that inactivity is only revealed to
	// callers who know the password.
	if !identity.Active {
		return nil, inactive(identity.ID)
	}

	if s.hasher.NeedsUpgrade(identity.PasswordHash) {
		s.upgradeHash(ctx, identity, password)
	}
	return identity, nil
}

// RequireBearer resolves the identity behind a bearer token of the expected
// type. Every failure is ErrInvalidToken.
func (s *Service) RequireBearer(ctx context.Context, bearer string, expected TokenType) (identity *Identity, err error) {
	ctx, end := s.opts.start(ctx, "require_bearer")
	defer func() { end(err) }()

	return s.requireBearer(ctx, bearer, expected)
}

// RequireActiveBearer is RequireBearer for routes closed to deactivated
// identities, which get ErrForbidden.
func (s *Service) RequireActiveBearer(ctx context.Context, bearer string, expected TokenType) (identity *Identity, err error) {
	ctx, end := s.opts.start(ctx, "require_active_bearer")
	defer func() { end(err) }()

	identity, err = s.requireBearer(ctx, bearer, expected)
	if err != nil {
		return nil, err
	}
	if !identity.Active {
		return nil, inactive(identity.ID)
	}
	return identity, nil
}

func (s *Service) requireBearer(ctx context.Context, bearer string, expected TokenType) (*Identity, error) {
	claims, err := s.decode(bearer, expected)
	if err != nil {
		return nil, err
	}
	identityID, _ := claims.IdentityID()
	return s.resolveIdentity(ctx, identityID)
}
