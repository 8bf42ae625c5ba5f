// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

// Package authtest provides in-memory implementations of the auth storage
// and notification interfaces for tests.
package authtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/authcore/authcore/internal/auth"
)

// Store holds identities, refresh records and reset records in memory.
// Transactions are serialized and roll back every change when fn fails.
type Store struct {
	txMu sync.Mutex

	mu         sync.Mutex
	identities map[ulid.ULID]auth.Identity
	refresh    map[ulid.ULID]auth.RefreshToken
	resets     map[ulid.ULID]auth.PasswordReset
	failures   map[string]error
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		identities: make(map[ulid.ULID]auth.Identity),
		refresh:    make(map[ulid.ULID]auth.RefreshToken),
		resets:     make(map[ulid.ULID]auth.PasswordReset),
		failures:   make(map[string]error),
	}
}

// Fail makes every later call to op return err until cleared with a nil err.
// Op names are "<Repository>.<Method>", e.g. "RefreshTokens.Create".
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *Store) failure(op string) error {
	return s.failures[op]
}

// Identities returns the identity repository.
func (s *Store) Identities() *IdentityRepo { return &IdentityRepo{s: s} }

// RefreshTokens returns the refresh token repository.
func (s *Store) RefreshTokens() *RefreshTokenRepo { return &RefreshTokenRepo{s: s} }

// Resets returns the password reset repository.
func (s *Store) Resets() *ResetRepo { return &ResetRepo{s: s} }

// Transactor returns a transactor over the store.
func (s *Store) Transactor() *Transactor { return &Transactor{s: s} }

// RefreshTokensFor returns the live refresh records of an identity.
func (s *Store) RefreshTokensFor(identityID ulid.ULID) []auth.RefreshToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []auth.RefreshToken
	for _, t := range s.refresh {
		if t.IdentityID == identityID {
			out = append(out, t)
		}
	}
	return out
}

// ResetsFor returns the reset records of an identity.
func (s *Store) ResetsFor(identityID ulid.ULID) []auth.PasswordReset {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []auth.PasswordReset
	for _, r := range s.resets {
		if r.IdentityID == identityID {
			out = append(out, r)
		}
	}
	return out
}

// Counts returns the number of stored refresh and reset records.
func (s *Store) Counts() (refresh, resets int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.refresh), len(s.resets)
}

type snapshot struct {
	identities map[ulid.ULID]auth.Identity
	refresh    map[ulid.ULID]auth.RefreshToken
	resets     map[ulid.ULID]auth.PasswordReset
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot{
		identities: cloneMap(s.identities),
		refresh:    cloneMap(s.refresh),
		resets:     cloneMap(s.resets),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities = snap.identities
	s.refresh = snap.refresh
	s.resets = snap.resets
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type txKey struct{}

// Transactor implements auth.Transactor over a Store.
type Transactor struct {
	s *Store
}

var _ auth.Transactor = (*Transactor)(nil)

// InTransaction runs fn with exclusive access to the store. Nested calls
// join the outer transaction.
func (t *Transactor) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	t.s.txMu.Lock()
	defer t.s.txMu.Unlock()

	snap := t.s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		t.s.restore(snap)
		return err
	}
	return nil
}

// IdentityRepo implements auth.IdentityRepository.
type IdentityRepo struct {
	s *Store
}

var _ auth.IdentityRepository = (*IdentityRepo)(nil)

// Create stores identity.
func (r *IdentityRepo) Create(_ context.Context, identity *auth.Identity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("Identities.Create"); err != nil {
		return err
	}
	for _, existing := range r.s.identities {
		if strings.EqualFold(existing.Email, identity.Email) {
			return auth.ErrAlreadyExists
		}
	}
	r.s.identities[identity.ID] = *identity
	return nil
}

// GetByID returns the identity with id.
func (r *IdentityRepo) GetByID(_ context.Context, id ulid.ULID) (*auth.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("Identities.GetByID"); err != nil {
		return nil, err
	}
	identity, ok := r.s.identities[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &identity, nil
}

// GetByEmail returns the identity with email, compared case-insensitively.
func (r *IdentityRepo) GetByEmail(_ context.Context, email string) (*auth.Identity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("Identities.GetByEmail"); err != nil {
		return nil, err
	}
	for _, identity := range r.s.identities {
		if strings.EqualFold(identity.Email, email) {
			return &identity, nil
		}
	}
	return nil, auth.ErrNotFound
}

// UpdatePassword replaces the password hash of id.
func (r *IdentityRepo) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("Identities.UpdatePassword"); err != nil {
		return err
	}
	identity, ok := r.s.identities[id]
	if !ok {
		return auth.ErrNotFound
	}
	identity.PasswordHash = passwordHash
	identity.UpdatedAt = time.Now()
	r.s.identities[id] = identity
	return nil
}

// SetActive enables or disables id.
func (r *IdentityRepo) SetActive(_ context.Context, id ulid.ULID, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("Identities.SetActive"); err != nil {
		return err
	}
	identity, ok := r.s.identities[id]
	if !ok {
		return auth.ErrNotFound
	}
	identity.Active = active
	identity.UpdatedAt = time.Now()
	r.s.identities[id] = identity
	return nil
}

// RefreshTokenRepo implements auth.RefreshTokenRepository.
type RefreshTokenRepo struct {
	s *Store
}

var _ auth.RefreshTokenRepository = (*RefreshTokenRepo)(nil)

// Create stores token.
func (r *RefreshTokenRepo) Create(_ context.Context, token *auth.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("RefreshTokens.Create"); err != nil {
		return err
	}
	for _, existing := range r.s.refresh {
		if existing.JTI == token.JTI {
			return auth.ErrAlreadyExists
		}
	}
	r.s.refresh[token.ID] = *token
	return nil
}

// GetByJTI returns the record of identityID with jti.
func (r *RefreshTokenRepo) GetByJTI(_ context.Context, identityID ulid.ULID, jti string) (*auth.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("RefreshTokens.GetByJTI"); err != nil {
		return nil, err
	}
	for _, token := range r.s.refresh {
		if token.IdentityID == identityID && token.JTI == jti {
			return &token, nil
		}
	}
	return nil, auth.ErrNotFound
}

// Delete removes the record with id.
func (r *RefreshTokenRepo) Delete(_ context.Context, id ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("RefreshTokens.Delete"); err != nil {
		return err
	}
	if _, ok := r.s.refresh[id]; !ok {
		return auth.ErrNotFound
	}
	delete(r.s.refresh, id)
	return nil
}

// DeleteByIdentity removes every record of identityID.
func (r *RefreshTokenRepo) DeleteByIdentity(_ context.Context, identityID ulid.ULID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("RefreshTokens.DeleteByIdentity"); err != nil {
		return 0, err
	}
	var n int64
	for id, token := range r.s.refresh {
		if token.IdentityID == identityID {
			delete(r.s.refresh, id)
			n++
		}
	}
	return n, nil
}

// DeleteExpired removes records expired at or before before.
func (r *RefreshTokenRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("RefreshTokens.DeleteExpired"); err != nil {
		return 0, err
	}
	var n int64
	for id, token := range r.s.refresh {
		if !token.ExpiresAt.After(before) {
			delete(r.s.refresh, id)
			n++
		}
	}
	return n, nil
}

// ResetRepo implements auth.PasswordResetRepository.
type ResetRepo struct {
	s *Store
}

var _ auth.PasswordResetRepository = (*ResetRepo)(nil)

// Create stores reset.
func (r *ResetRepo) Create(_ context.Context, reset *auth.PasswordReset) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("Resets.Create"); err != nil {
		return err
	}
	for _, existing := range r.s.resets {
		if existing.LookupHash == reset.LookupHash {
			return auth.ErrAlreadyExists
		}
	}
	r.s.resets[reset.ID] = *reset
	return nil
}

// GetByLookupHash returns the reset with lookupHash.
func (r *ResetRepo) GetByLookupHash(_ context.Context, lookupHash string) (*auth.PasswordReset, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("Resets.GetByLookupHash"); err != nil {
		return nil, err
	}
	for _, reset := range r.s.resets {
		if reset.LookupHash == lookupHash {
			return &reset, nil
		}
	}
	return nil, auth.ErrNotFound
}

// Delete removes the reset with id.
func (r *ResetRepo) Delete(_ context.Context, id ulid.ULID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("Resets.Delete"); err != nil {
		return err
	}
	if _, ok := r.s.resets[id]; !ok {
		return auth.ErrNotFound
	}
	delete(r.s.resets, id)
	return nil
}

// DeleteByIdentity removes every reset of identityID.
func (r *ResetRepo) DeleteByIdentity(_ context.Context, identityID ulid.ULID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("Resets.DeleteByIdentity"); err != nil {
		return 0, err
	}
	var n int64
	for id, reset := range r.s.resets {
		if reset.IdentityID == identityID {
			delete(r.s.resets, id)
			n++
		}
	}
	return n, nil
}

// DeleteExpired removes resets expired at or before before.
func (r *ResetRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("Resets.DeleteExpired"); err != nil {
		return 0, err
	}
	var n int64
	for id, reset := range r.s.resets {
		if !reset.ExpiresAt.After(before) {
			delete(r.s.resets, id)
			n++
		}
	}
	return n, nil
}
