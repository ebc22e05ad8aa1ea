// Package crypto holds the server's hashing primitives: Argon2id for
// account passwords and SHA-256 fingerprints for issued certificates.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for account passwords.
const (
	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024 // KiB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32

	// SaltLen is the per-user salt size.
	SaltLen = 16
)

// MinPasswordLen is enforced on registration and user creation.
const MinPasswordLen = 8

var ErrWeakPassword = errors.New("password too short")

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// NewPasswordHash draws a fresh salt and hashes password with it.
func NewPasswordHash(password string) (hash, salt []byte, err error) {
	if len(password) < MinPasswordLen {
		return nil, nil, ErrWeakPassword
	}
	salt, err = RandBytes(SaltLen)
	if err != nil {
		return nil, nil, err
	}
	return HashPassword([]byte(password), salt), salt, nil
}

// HashPassword returns the Argon2id key of password under salt.
func HashPassword(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// VerifyPassword compares in constant time.
func VerifyPassword(password, salt, expected []byte) bool {
	got := HashPassword(password, salt)
	return subtle.ConstantTimeCompare(got, expected) == 1
}
