// Package cryptox derives the credentials kept on the device for offline
// login and generates random secrets.
package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"golang.org/x/crypto/argon2"
)

const SaltSize = 32

// DeriveKey stretches password with salt using Argon2id.
func DeriveKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

// MakeVerifier returns the value stored in place of a derived key.
func MakeVerifier(key []byte) []byte {
	hash := sha256.Sum256(key)
	return hash[:]
}

// Verify reports whether password matches the verifier made from salt.
func Verify(password, salt, verifier []byte) bool {
	key := DeriveKey(password, salt)
	defer wipe(key)
	return subtle.ConstantTimeCompare(MakeVerifier(key), verifier) == 1
}

// NewSalt returns SaltSize random bytes.
func NewSalt() ([]byte, error) {
	b := make([]byte, SaltSize)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// RandHex returns size random bytes hex-encoded.
func RandHex(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
