// Package pincode provides one-way PIN hashing and verification using
// PBKDF2-SHA256.
package pincode

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultIterations is the PBKDF2 cost factor. The PIN is only six
	// digits, so the iteration count is the primary defense against offline
	// guessing of a stolen database. Changing it invalidates stored hashes.
	DefaultIterations = 100_000

	// DefaultSaltLength is the random salt size in bytes.
	DefaultSaltLength = 16

	hashLength = 32
)

// Hasher derives and verifies PIN hashes. The zero value is not usable; use
// NewHasher.
type Hasher struct {
	iterations int
	saltLength int
}

// NewHasher creates a Hasher. Non-positive values fall back to the defaults.
func NewHasher(iterations, saltLength int) *Hasher {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	if saltLength <= 0 {
		saltLength = DefaultSaltLength
	}
	return &Hasher{iterations: iterations, saltLength: saltLength}
}

// NewSalt generates cryptographically secure random salt, base64-encoded.
func (h *Hasher) NewSalt() (string, error) {
	salt := make([]byte, h.saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(salt), nil
}

// DeriveHash runs PBKDF2-SHA256 over the PIN and the decoded salt and returns
// the 32-byte output as a lowercase hex string.
func (h *Hasher) DeriveHash(pin, saltB64 string) (string, error) {
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return "", fmt.Errorf("failed to decode salt: %w", err)
	}
	key := pbkdf2.Key([]byte(pin), salt, h.iterations, hashLength, sha256.New)
	return hex.EncodeToString(key), nil
}

// Verify recomputes the hash for (pin, salt) and compares it to the stored
// hash. A salt that fails to decode verifies as false rather than erroring;
// the caller treats it like any other mismatch.
func (h *Hasher) Verify(pin, hash, saltB64 string) bool {
	derived, err := h.DeriveHash(pin, saltB64)
	if err != nil {
		return false
	}
	return derived == hash
}
