// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// MinSecretBytes is the shortest signing secret NewCodec accepts.
const MinSecretBytes = 32

// TokenType discriminates access tokens from refresh tokens.
type TokenType string

// Token types.
const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Valid reports whether t is a known token type.
func (t TokenType) Valid() bool {
	return t == TokenTypeAccess || t == TokenTypeRefresh
}

// Claims are the signed contents of a bearer token.
type Claims struct {
	Type TokenType `json:"type"`
	jwt.RegisteredClaims
}

// IdentityID parses the subject claim.
func (c *Claims) IdentityID() (ulid.ULID, error) {
	return ulid.Parse(c.Subject)
}

// ExpiresAtTime returns the expiry claim, or the zero time if absent.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

var signingMethods = map[string]*jwt.SigningMethodHMAC{
	"HS256": jwt.SigningMethodHS256,
	"HS384": jwt.SigningMethodHS384,
	"HS512": jwt.SigningMethodHS512,
}

// SupportedAlgorithms lists the accepted signing algorithm names.
func SupportedAlgorithms() []string {
	return []string{"HS256", "HS384", "HS512"}
}

// Codec signs and verifies bearer tokens with a shared HMAC secret.
type Codec struct {
	secret []byte
	method *jwt.SigningMethodHMAC
	now    func() time.Time
	parser *jwt.Parser
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithCodecClock overrides the time source used for issuing and validating.
func WithCodecClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec creates a Codec. A short secret or a non-HMAC algorithm is a
// configuration error.
func NewCodec(secret []byte, algorithm string, opts ...CodecOption) (*Codec, error) {
	if len(secret) < MinSecretBytes {
		return nil, oops.Code("CODEC_INVALID_CONFIG").
			With("min_bytes", MinSecretBytes).
			Errorf("signing secret must be at least %d bytes", MinSecretBytes)
	}
	method, ok := signingMethods[algorithm]
	if !ok {
		return nil, oops.Code("CODEC_INVALID_CONFIG").
			With("algorithm", algorithm).
			Errorf("unsupported signing algorithm")
	}

	c := &Codec{
		secret: append([]byte(nil), secret...),
		method: method,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)
	return c, nil
}

// EncodeAccess issues an access token for subject that expires after ttl.
// Each call carries a fresh jti.
func (c *Codec) EncodeAccess(subject ulid.ULID, ttl time.Duration) (string, *Claims, error) {
	if ttl <= 0 {
		return "", nil, oops.Code("TOKEN_SIGN_FAILED").With("ttl", ttl).Errorf("access ttl must be positive")
	}
	now := c.now().Truncate(time.Second)
	claims := c.claims(TokenTypeAccess, subject, uuid.NewString(), now, now.Add(ttl))
	token, err := c.sign(claims)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// EncodeRefresh issues the bearer form of a stored refresh record.
func (c *Codec) EncodeRefresh(subject ulid.ULID, jti string, expiresAt time.Time) (string, error) {
	if jti == "" {
		return "", oops.Code("TOKEN_SIGN_FAILED").Errorf("refresh token requires a jti")
	}
	now := c.now().Truncate(time.Second)
	return c.sign(c.claims(TokenTypeRefresh, subject, jti, now, expiresAt.Truncate(time.Second)))
}

// Decode verifies token and returns its claims. Every failure, whether a bad
// signature, an expired token or a missing claim, is ErrInvalidToken; the
// reason is kept in the error context for logs.
func (c *Codec) Decode(token string) (*Claims, error) {
	claims := &Claims{}
	if _, err := c.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}); err != nil {
		return nil, invalidToken(decodeReason(err)).With("cause", err.Error()).Wrap(ErrInvalidToken)
	}

	if claims.Subject == "" {
		return nil, invalidToken("missing_subject").Wrap(ErrInvalidToken)
	}
	if _, err := claims.IdentityID(); err != nil {
		return nil, invalidToken("malformed_subject").Wrap(ErrInvalidToken)
	}
	if claims.ID == "" {
		return nil, invalidToken("missing_jti").Wrap(ErrInvalidToken)
	}
	if claims.IssuedAt == nil {
		return nil, invalidToken("missing_iat").Wrap(ErrInvalidToken)
	}
	if !claims.Type.Valid() {
		return nil, invalidToken("unknown_type").With("type", string(claims.Type)).Wrap(ErrInvalidToken)
	}
	return claims, nil
}

func (c *Codec) claims(typ TokenType, subject ulid.ULID, jti string, issued, expires time.Time) *Claims {
	return &Claims{
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
}

func (c *Codec) sign(claims *Claims) (string, error) {
	token, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").With("type", string(claims.Type)).Wrap(err)
	}
	return token, nil
}

func invalidToken(reason string) oops.OopsErrorBuilder {
	return oops.Code("TOKEN_INVALID").With("reason", reason)
}

func decodeReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "bad_signature"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "unverifiable"
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "missing_claim"
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return "issued_in_future"
	default:
		return "invalid"
	}
}
