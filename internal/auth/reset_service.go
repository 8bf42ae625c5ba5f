// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/authcore/authcore/pkg/errutil"
)

// ResetServiceDeps are the collaborators of PasswordResetService.
type ResetServiceDeps struct {
	Identities    IdentityRepository
	RefreshTokens RefreshTokenRepository
	Resets        PasswordResetRepository
	Transactor    Transactor
	Hasher        PasswordHasher
	Notifier      ResetNotifier
}

// PasswordResetService issues and redeems password reset tokens.
type PasswordResetService struct {
	identities IdentityRepository
	refresh    RefreshTokenRepository
	resets     PasswordResetRepository
	tx         Transactor
	hasher     PasswordHasher
	notifier   ResetNotifier
	cfg        Config
	opts       options
}

// NewPasswordResetService creates a PasswordResetService.
func NewPasswordResetService(deps ResetServiceDeps, cfg Config, opts ...Option) (*PasswordResetService, error) {
	switch {
	case deps.Identities == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("identity repository is required")
	case deps.RefreshTokens == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("refresh token repository is required")
	case deps.Resets == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password reset repository is required")
	case deps.Transactor == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("transactor is required")
	case deps.Hasher == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	case deps.Notifier == nil:
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("reset notifier is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &PasswordResetService{
		identities: deps.Identities,
		refresh:    deps.RefreshTokens,
		resets:     deps.Resets,
		tx:         deps.Transactor,
		hasher:     deps.Hasher,
		notifier:   deps.Notifier,
		cfg:        cfg,
		opts:       newOptions(opts),
	}, nil
}

// RequestReset starts a reset for email. It succeeds whether or not the email
// is registered, and does the same hashing work in both cases. For a known
// email the raw token is handed to the notifier; a notifier failure is logged
// and the stored record is kept.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) (err error) {
	ctx, end := s.opts.start(ctx, "request_reset")
	defer func() { end(err) }()

	identity, err := s.identities.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code("RESET_REQUEST_FAILED").With("operation", "get identity by email").Wrap(err)
	}

	raw, err := GenerateOpaqueToken(s.cfg.ResetTokenBytes)
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").With("operation", "generate token").Wrap(err)
	}
	credentialHash, err := s.hasher.Hash(raw)
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").With("operation", "hash token").Wrap(err)
	}

	if identity == nil {
		return nil
	}

	reset, err := NewPasswordReset(identity.ID, LookupHash(raw), credentialHash, s.opts.now(), s.cfg.ResetTTL)
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").Wrap(err)
	}
	if err := s.resets.Create(ctx, reset); err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "persist reset").
			With("identity_id", identity.ID.String()).
			Wrap(err)
	}

	if err := s.notifier.NotifyPasswordReset(ctx, ResetNotification{Email: identity.Email, Token: raw}); err != nil {
		errutil.LogWarn(s.opts.logger, "best-effort reset notification failed", err,
			"operation", "notify",
			"identity_id", identity.ID.String(),
			"reset_id", reset.ID.String(),
		)
		s.opts.recorder.RecordAuthEvent("reset_notify", OutcomeError)
		return nil
	}
	s.opts.recorder.RecordAuthEvent("reset_notify", OutcomeSuccess)
	return nil
}

// ConfirmReset redeems raw and sets newPassword. The reset record is consumed
// in the same transaction that updates the password; with
// Config.RevokeSessionsOnReset every refresh record of the identity is
// deleted too. All token failures are ErrInvalidToken.
func (s *PasswordResetService) ConfirmReset(ctx context.Context, raw, newPassword string) (err error) {
	ctx, end := s.opts.start(ctx, "confirm_reset")
	defer func() { end(err) }()

	if raw == "" {
		return invalidToken("empty_reset_token").Wrap(ErrInvalidToken)
	}
	if newPassword == "" {
		return oops.Code("RESET_PASSWORD_EMPTY").Wrapf(ErrInvalidInput, "new password cannot be empty")
	}

	var expired bool
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		reset, err := s.resets.GetByLookupHash(ctx, LookupHash(raw))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return invalidToken("unknown_reset_token").Wrap(ErrInvalidToken)
			}
			return oops.Code("RESET_CONFIRM_FAILED").With("operation", "get reset").Wrap(err)
		}

		if reset.IsExpiredAt(s.opts.now()) {
			if err := s.resets.Delete(ctx, reset.ID); err != nil && !errors.Is(err, ErrNotFound) {
				return oops.Code("RESET_CONFIRM_FAILED").With("operation", "delete expired reset").Wrap(err)
			}
			expired = true
			return nil
		}

		if !s.hasher.Verify(raw, reset.CredentialHash) {
			s.opts.logger.WarnContext(ctx, "reset token credential mismatch",
				"reset_id", reset.ID.String(),
				"identity_id", reset.IdentityID.String(),
			)
			return oops.Code("RESET_CREDENTIAL_MISMATCH").
				With("reset_id", reset.ID.String()).
				Wrap(errResetCredentialMismatch)
		}

		if _, err := s.identities.GetByID(ctx, reset.IdentityID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return invalidToken("unknown_subject").Wrap(ErrInvalidToken)
			}
			return oops.Code("RESET_CONFIRM_FAILED").With("operation", "get identity").Wrap(err)
		}

		if err := s.resets.Delete(ctx, reset.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return invalidToken("concurrent_redemption").Wrap(ErrInvalidToken)
			}
			return oops.Code("RESET_CONFIRM_FAILED").With("operation", "delete reset").Wrap(err)
		}

		hash, err := s.hasher.Hash(newPassword)
		if err != nil {
			return oops.Code("RESET_CONFIRM_FAILED").With("operation", "hash password").Wrap(err)
		}
		if err := s.identities.UpdatePassword(ctx, reset.IdentityID, hash); err != nil {
			return oops.Code("RESET_CONFIRM_FAILED").With("operation", "update password").Wrap(err)
		}

		if s.cfg.RevokeSessionsOnReset {
			revoked, err := s.refresh.DeleteByIdentity(ctx, reset.IdentityID)
			if err != nil {
				return oops.Code("RESET_CONFIRM_FAILED").With("operation", "revoke refresh tokens").Wrap(err)
			}
			s.opts.logger.InfoContext(ctx, "password reset confirmed",
				"identity_id", reset.IdentityID.String(),
				"revoked_refresh_tokens", revoked,
			)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if expired {
		return invalidToken("expired_reset_token").Wrap(ErrInvalidToken)
	}
	return nil
}
