// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cinebook Contributors

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

// Argon2Params is the argon2id work factor.
type Argon2Params struct {
	Iterations  uint32
	MemoryKiB   uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

// DefaultArgon2Params returns the OWASP-recommended argon2id parameters.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Iterations:  1,
		MemoryKiB:   64 * 1024,
		Parallelism: 4,
		SaltLen:     16,
		KeyLen:      32,
	}
}

// Upper bounds on argon2id parameters, both configured and read from stored
// hashes. A stored hash outside them never verifies.
const (
	MaxArgon2MemoryKiB  = 1 << 20 // 1 GiB
	MaxArgon2Iterations = 64
	maxArgon2BytesLen   = 1 << 10
)

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted one-way hash of the password.
	Hash(password string) (string, error)

	// Verify reports whether password matches hash. Malformed hashes never match.
	Verify(password, hash string) bool

	// NeedsUpgrade returns true if hash should be replaced by a fresh Hash.
	NeedsUpgrade(hash string) bool
}

// Argon2idHasher implements PasswordHasher using argon2id. Legacy bcrypt
// hashes are accepted by Verify and always reported by NeedsUpgrade.
type Argon2idHasher struct {
	params Argon2Params
}

// NewArgon2idHasher creates an Argon2idHasher with DefaultArgon2Params.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{params: DefaultArgon2Params()}
}

// NewArgon2idHasherWithParams creates an Argon2idHasher with a custom work factor.
func NewArgon2idHasherWithParams(p Argon2Params) (*Argon2idHasher, error) {
	if p.Iterations == 0 || p.MemoryKiB == 0 || p.Parallelism == 0 {
		return nil, oops.Code(CodeInvalidConfig).
			With("iterations", p.Iterations).
			With("memory_kib", p.MemoryKiB).
			With("parallelism", p.Parallelism).
			Errorf("argon2id parameters must be positive")
	}
	def := DefaultArgon2Params()
	if p.SaltLen == 0 {
		p.SaltLen = def.SaltLen
	}
	if p.KeyLen == 0 {
		p.KeyLen = def.KeyLen
	}
	if p.Iterations > MaxArgon2Iterations || p.MemoryKiB > MaxArgon2MemoryKiB ||
		p.SaltLen > maxArgon2BytesLen || p.KeyLen > maxArgon2BytesLen {
		return nil, oops.Code(CodeInvalidConfig).
			With("iterations", p.Iterations).
			With("memory_kib", p.MemoryKiB).
			With("salt_len", p.SaltLen).
			With("key_len", p.KeyLen).
			Errorf("argon2id parameters exceed limits")
	}
	return &Argon2idHasher{params: p}, nil
}

// Hash produces an argon2id hash in PHC string format.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code(CodeHashingFailed).With("operation", "generate salt").Wrap(err)
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Iterations, h.params.MemoryKiB, h.params.Parallelism, h.params.KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKiB,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks password against an argon2id or legacy bcrypt hash.
func (h *Argon2idHasher) Verify(password, encodedHash string) bool {
	if isBcrypt(encodedHash) {
		return bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password)) == nil
	}

	p, salt, expected, ok := parseArgon2id(encodedHash)
	if !ok {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLen)
	return subtle.ConstantTimeCompare(computed, expected) == 1
}

// NeedsUpgrade returns true for bcrypt hashes and for argon2id hashes weaker
// than the configured parameters.
func (h *Argon2idHasher) NeedsUpgrade(encodedHash string) bool {
	p, _, _, ok := parseArgon2id(encodedHash)
	if !ok {
		return true
	}
	return p.Iterations < h.params.Iterations ||
		p.MemoryKiB < h.params.MemoryKiB ||
		p.Parallelism < h.params.Parallelism
}

func isBcrypt(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") ||
		strings.HasPrefix(hash, "$2b$") ||
		strings.HasPrefix(hash, "$2y$")
}

// parseArgon2id decodes a PHC argon2id string. ok is false for anything that
// is not a well-formed argon2id hash.
func parseArgon2id(encoded string) (p Argon2Params, salt, key []byte, ok bool) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, nil, nil, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, false
	}

	var threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.MemoryKiB, &p.Iterations, &threads); err != nil {
		return p, nil, nil, false
	}
	// threads must fit in uint8 to avoid silent truncation
	if threads == 0 || threads > 255 ||
		p.Iterations == 0 || p.Iterations > MaxArgon2Iterations ||
		p.MemoryKiB == 0 || p.MemoryKiB > MaxArgon2MemoryKiB {
		return p, nil, nil, false
	}
	p.Parallelism = uint8(threads)

	var err error
	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return p, nil, nil, false
	}
	if key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return p, nil, nil, false
	}
	if len(salt) == 0 || len(salt) > maxArgon2BytesLen || len(key) == 0 || len(key) > maxArgon2BytesLen {
		return p, nil, nil, false
	}
	p.SaltLen = uint32(len(salt))
	p.KeyLen = uint32(len(key))
	return p, salt, key, true
}

var _ PasswordHasher = (*Argon2idHasher)(nil)
