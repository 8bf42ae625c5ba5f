// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/authcore/authcore/pkg/errutil"
)

// BearerTokenType is the token_type reported alongside issued pairs.
const BearerTokenType = "Bearer"

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// ServiceDeps are the collaborators of Service.
type ServiceDeps struct {
	Identities    IdentityRepository
	RefreshTokens RefreshTokenRepository
	Transactor    Transactor
	Hasher        PasswordHasher
	Codec         *Codec
}

// Service implements credential authentication and the refresh token
// lifecycle. It holds no per-request state and is safe for concurrent use.
type Service struct {
	identities IdentityRepository
	refresh    RefreshTokenRepository
	tx         Transactor
	hasher     PasswordHasher
	codec      *Codec
	cfg        Config
	opts       options

	// dummyHash is verified when an email is unknown so that both outcomes
	// cost one slow verification.
	dummyHash string
}

// NewService creates a Service.
func NewService(deps ServiceDeps, cfg Config, opts ...Option) (*Service, error) {
	switch {
	case deps.Identities == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("identity repository is required")
	case deps.RefreshTokens == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("refresh token repository is required")
	case deps.Transactor == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("transactor is required")
	case deps.Hasher == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	case deps.Codec == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("token codec is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dummy, err := newDummyHash(deps.Hasher)
	if err != nil {
		return nil, err
	}

	return &Service{
		identities: deps.Identities,
		refresh:    deps.RefreshTokens,
		tx:         deps.Transactor,
		hasher:     deps.Hasher,
		codec:      deps.Codec,
		cfg:        cfg,
		opts:       newOptions(opts),
		dummyHash:  dummy,
	}, nil
}

func newDummyHash(hasher PasswordHasher) (string, error) {
	secret, err := GenerateOpaqueToken(MinOpaqueTokenBytes)
	if err != nil {
		return "", err
	}
	hash, err := hasher.Hash(secret)
	if err != nil {
		return "", oops.Code("AUTH_INVALID_CONFIG").With("operation", "compute dummy hash").Wrap(err)
	}
	return hash, nil
}

// Register creates an active identity. Returns ErrAlreadyExists if the email
// is taken.
func (s *Service) Register(ctx context.Context, email, password string) (identity *Identity, err error) {
	ctx, end := s.opts.start(ctx, "register")
	defer func() { end(err) }()

	if err := ValidateEmail(NormalizeEmail(email)); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "hash password").Wrap(err)
	}
	identity, err = NewIdentity(email, hash, s.opts.now())
	if err != nil {
		return nil, err
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").With("operation", "create identity").Wrap(err)
	}
	return identity, nil
}

// Login authenticates email and password and issues a token pair.
func (s *Service) Login(ctx context.Context, email, password string) (pair *TokenPair, err error) {
	ctx, end := s.opts.start(ctx, "login")
	defer func() { end(err) }()

	identity, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, identity.ID)
}

// IssueTokens issues a fresh access token and refresh token for identity and
// persists the refresh record. Existing records for the identity are kept.
func (s *Service) IssueTokens(ctx context.Context, identity *Identity) (pair *TokenPair, err error) {
	ctx, end := s.opts.start(ctx, "issue_tokens")
	defer func() { end(err) }()

	if identity == nil {
		return nil, oops.Code("AUTH_ISSUE_FAILED").Errorf("identity is required")
	}
	return s.issue(ctx, identity.ID)
}

func (s *Service) issue(ctx context.Context, identityID ulid.ULID) (*TokenPair, error) {
	record, err := NewRefreshToken(identityID, s.opts.now(), s.cfg.RefreshTTL)
	if err != nil {
		return nil, oops.Code("AUTH_ISSUE_FAILED").Wrap(err)
	}

	access, accessClaims, err := s.codec.EncodeAccess(identityID, s.cfg.AccessTTL)
	if err != nil {
		return nil, oops.Code("AUTH_ISSUE_FAILED").With("operation", "encode access token").Wrap(err)
	}
	refresh, err := s.codec.EncodeRefresh(identityID, record.JTI, record.ExpiresAt)
	if err != nil {
		return nil, oops.Code("AUTH_ISSUE_FAILED").With("operation", "encode refresh token").Wrap(err)
	}

	if err := s.refresh.Create(ctx, record); err != nil {
		return nil, oops.Code("AUTH_ISSUE_FAILED").
			With("operation", "persist refresh token").
			With("identity_id", identityID.String()).
			Wrap(err)
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        BearerTokenType,
		AccessExpiresAt:  accessClaims.ExpiresAtTime(),
		RefreshExpiresAt: record.ExpiresAt,
	}, nil
}

// Refresh redeems a refresh bearer for a new pair. The redeemed record is
// deleted in the same transaction that stores its replacement, so a bearer
// can be redeemed at most once.
func (s *Service) Refresh(ctx context.Context, bearer string) (pair *TokenPair, err error) {
	ctx, end := s.opts.start(ctx, "refresh")
	defer func() { end(err) }()

	claims, err := s.decode(bearer, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	identityID, _ := claims.IdentityID()

	identity, err := s.resolveIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if !identity.Active {
		return nil, inactive(identityID)
	}

	var expired bool
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		record, err := s.refresh.GetByJTI(ctx, identityID, claims.ID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return invalidToken("unknown_refresh_token").Wrap(ErrInvalidToken)
			}
			return oops.Code("AUTH_REFRESH_FAILED").With("operation", "get refresh token").Wrap(err)
		}

		if record.IsExpiredAt(s.opts.now()) {
			// The deletion must commit, so the rejection is returned after
			// the transaction rather than from inside it.
			if err := s.refresh.Delete(ctx, record.ID); err != nil && !errors.Is(err, ErrNotFound) {
				return oops.Code("AUTH_REFRESH_FAILED").With("operation", "delete expired refresh token").Wrap(err)
			}
			expired = true
			return nil
		}

		if err := s.refresh.Delete(ctx, record.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return invalidToken("concurrent_redemption").Wrap(ErrInvalidToken)
			}
			return oops.Code("AUTH_REFRESH_FAILED").With("operation", "delete refresh token").Wrap(err)
		}

		pair, err = s.issue(ctx, identityID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, invalidToken("expired_refresh_token").Wrap(ErrInvalidToken)
	}
	return pair, nil
}

// Logout deletes the refresh record named by bearer. Other sessions of the
// same identity are unaffected.
func (s *Service) Logout(ctx context.Context, identityID ulid.ULID, bearer string) (err error) {
	ctx, end := s.opts.start(ctx, "logout")
	defer func() { end(err) }()

	claims, err := s.decode(bearer, TokenTypeRefresh)
	if err != nil {
		return err
	}
	if claims.Subject != identityID.String() {
		return invalidToken("subject_mismatch").Wrap(ErrInvalidToken)
	}

	return s.tx.InTransaction(ctx, func(ctx context.Context) error {
		record, err := s.refresh.GetByJTI(ctx, identityID, claims.ID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return invalidToken("unknown_refresh_token").Wrap(ErrInvalidToken)
			}
			return oops.Code("AUTH_LOGOUT_FAILED").With("operation", "get refresh token").Wrap(err)
		}
		if err := s.refresh.Delete(ctx, record.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return invalidToken("concurrent_redemption").Wrap(ErrInvalidToken)
			}
			return oops.Code("AUTH_LOGOUT_FAILED").With("operation", "delete refresh token").Wrap(err)
		}
		return nil
	})
}

// ChangePassword replaces the password of an authenticated identity after
// checking the current one, and revokes every refresh record it holds.
func (s *Service) ChangePassword(ctx context.Context, identityID ulid.ULID, oldPassword, newPassword string) (err error) {
	ctx, end := s.opts.start(ctx, "change_password")
	defer func() { end(err) }()

	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("AUTH_IDENTITY_UNKNOWN").With("identity_id", identityID.String()).Wrap(ErrUnauthorized)
		}
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("operation", "get identity").Wrap(err)
	}

	if !s.hasher.Verify(oldPassword, identity.PasswordHash) {
		return oops.Code("AUTH_INCORRECT_PASSWORD").With("identity_id", identityID.String()).Wrap(ErrIncorrectCredential)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("operation", "hash password").Wrap(err)
	}

	return s.tx.InTransaction(ctx, func(ctx context.Context) error {
		if err := s.identities.UpdatePassword(ctx, identityID, hash); err != nil {
			return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("operation", "update password").Wrap(err)
		}
		revoked, err := s.refresh.DeleteByIdentity(ctx, identityID)
		if err != nil {
			return oops.Code("AUTH_CHANGE_PASSWORD_FAILED").With("operation", "revoke refresh tokens").Wrap(err)
		}
		s.opts.logger.InfoContext(ctx, "password changed",
			"identity_id", identityID.String(),
			"revoked_refresh_tokens", revoked,
		)
		return nil
	})
}

// decode verifies bearer and checks its type.
func (s *Service) decode(bearer string, expected TokenType) (*Claims, error) {
	claims, err := s.codec.Decode(bearer)
	if err != nil {
		return nil, err
	}
	if claims.Type != expected {
		return nil, invalidToken("wrong_type").
			With("expected", string(expected)).
			With("type", string(claims.Type)).
			Wrap(ErrInvalidToken)
	}
	return claims, nil
}

// resolveIdentity loads the subject of a verified token. A subject that no
// longer exists makes the token invalid.
func (s *Service) resolveIdentity(ctx context.Context, id ulid.ULID) (*Identity, error) {
	identity, err := s.identities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, invalidToken("unknown_subject").Wrap(ErrInvalidToken)
		}
		return nil, oops.Code("AUTH_RESOLVE_FAILED").
			With("identity_id", id.String()).
			Wrap(err)
	}
	return identity, nil
}

// upgradeHash rehashes a password that verified against an outdated hash.
// Failure is logged and never fails the login.
func (s *Service) upgradeHash(ctx context.Context, identity *Identity, password string) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		errutil.LogWarn(s.opts.logger, "best-effort password upgrade failed", err,
			"operation", "upgrade_hash",
			"identity_id", identity.ID.String(),
		)
		return
	}
	if err := s.identities.UpdatePassword(ctx, identity.ID, hash); err != nil {
		errutil.LogWarn(s.opts.logger, "best-effort password upgrade failed", err,
			"operation", "upgrade_hash",
			"identity_id", identity.ID.String(),
		)
		return
	}
	identity.PasswordHash = hash
}

func inactive(id ulid.ULID) error {
	return oops.Code("AUTH_IDENTITY_INACTIVE").With("identity_id", id.String()).Wrap(ErrForbidden)
}
