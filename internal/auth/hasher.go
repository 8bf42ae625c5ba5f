// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Argon2Params are the tunable argon2id cost parameters.
type Argon2Params struct {
	Time      uint32 // iterations
	MemoryKiB uint32
	Threads   uint8
	SaltLen   uint32
	KeyLen    uint32
}

// DefaultArgon2Params returns the OWASP-recommended argon2id parameters.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Time:      1,
		MemoryKiB: 64 * 1024,
		Threads:   4,
		SaltLen:   16,
		KeyLen:    32,
	}
}

// Validate checks the parameters are usable by argon2.IDKey.
func (p Argon2Params) Validate() error {
	if p.Time == 0 {
		return oops.Code("HASHER_INVALID_PARAMS").Errorf("argon2 time must be positive")
	}
	if p.Threads == 0 {
		return oops.Code("HASHER_INVALID_PARAMS").Errorf("argon2 threads must be positive")
	}
	if p.MemoryKiB < 8*uint32(p.Threads) {
		return oops.Code("HASHER_INVALID_PARAMS").
			With("memory_kib", p.MemoryKiB).
			With("threads", p.Threads).
			Errorf("argon2 memory must be at least 8 KiB per thread")
	}
	if p.SaltLen < 16 {
		return oops.Code("HASHER_INVALID_PARAMS").Errorf("argon2 salt must be at least 16 bytes")
	}
	if p.KeyLen < 16 {
		return oops.Code("HASHER_INVALID_PARAMS").Errorf("argon2 key must be at least 16 bytes")
	}
	return nil
}

// ErrEmptyPassword is returned when attempting to hash an empty secret.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Wrapf(ErrInvalidInput, "password cannot be empty")

// PasswordHasher hashes and verifies secrets. It is used for account
// passwords and for the credential half of reset tokens.
type PasswordHasher interface {
	// Hash produces a salted one-way hash of secret.
	Hash(secret string) (string, error)

	// Verify reports whether secret matches hash. A malformed hash is a
	// mismatch, not an error.
	Verify(secret, hash string) bool

	// NeedsUpgrade reports whether hash should be recomputed with the
	// current algorithm and parameters.
	NeedsUpgrade(hash string) bool
}

// Argon2idHasher implements PasswordHasher using argon2id. Hashes produced
// by bcrypt are accepted by Verify so older credentials keep working until
// they are upgraded.
type Argon2idHasher struct {
	params Argon2Params
	slots  chan struct{}
}

// HasherOption configures an Argon2idHasher.
type HasherOption func(*Argon2idHasher)

// WithMaxConcurrent bounds the number of hash computations running at once.
// Zero or negative leaves it unbounded.
func WithMaxConcurrent(n int) HasherOption {
	return func(h *Argon2idHasher) {
		if n > 0 {
			h.slots = make(chan struct{}, n)
		}
	}
}

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher(params Argon2Params, opts ...HasherOption) (*Argon2idHasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	h := &Argon2idHasher{params: params}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Params returns the parameters new hashes are produced with.
func (h *Argon2idHasher) Params() Argon2Params {
	return h.params
}

// Hash produces an argon2id hash of the secret in PHC string format.
func (h *Argon2idHasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	key := h.derive([]byte(secret), salt, h.params.Time, h.params.MemoryKiB, h.params.Threads, h.params.KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKiB,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks secret against an argon2id or bcrypt hash.
func (h *Argon2idHasher) Verify(secret, encoded string) bool {
	if isBcrypt(encoded) {
		h.acquire()
		defer h.release()
		return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(secret)) == nil
	}

	phc, err := parseArgon2id(encoded)
	if err != nil {
		return false
	}

	computed := h.derive([]byte(secret), phc.salt, phc.params.Time, phc.params.MemoryKiB, phc.params.Threads, uint32(len(phc.key)))
	return subtle.ConstantTimeCompare(computed, phc.key) == 1
}

// NeedsUpgrade returns true for bcrypt hashes, unparseable hashes, and
// argon2id hashes produced with different cost parameters.
func (h *Argon2idHasher) NeedsUpgrade(encoded string) bool {
	phc, err := parseArgon2id(encoded)
	if err != nil {
		return true
	}
	return phc.params.Time != h.params.Time ||
		phc.params.MemoryKiB != h.params.MemoryKiB ||
		phc.params.Threads != h.params.Threads ||
		uint32(len(phc.key)) != h.params.KeyLen
}

func (h *Argon2idHasher) derive(secret, salt []byte, time, memory uint32, threads uint8, keyLen uint32) []byte {
	h.acquire()
	defer h.release()
	return argon2.IDKey(secret, salt, time, memory, threads, keyLen)
}

func (h *Argon2idHasher) acquire() {
	if h.slots != nil {
		h.slots <- struct{}{}
	}
}

func (h *Argon2idHasher) release() {
	if h.slots != nil {
		<-h.slots
	}
}

type argon2idHash struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

// maxArgon2MemoryKiB caps the memory a stored hash can ask Verify to use.
const maxArgon2MemoryKiB = 4 * 1024 * 1024

func parseArgon2id(encoded string) (*argon2idHash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}
	if parts[1] != "argon2id" {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if version != argon2.Version {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported argon2 version: %d", version)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d out of range", threads)
	}
	if time == 0 || memory == 0 || memory > maxArgon2MemoryKiB {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("cost parameters out of range")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if len(key) == 0 || len(key) > 1024 {
		return nil, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", len(key))
	}

	return &argon2idHash{
		params: Argon2Params{
			Time:      time,
			MemoryKiB: memory,
			Threads:   uint8(threads),
			SaltLen:   uint32(len(salt)),
			KeyLen:    uint32(len(key)),
		},
		salt: salt,
		key:  key,
	}, nil
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}
