// Package secrets generates API keys and stores them as bcrypt hashes.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	dErrors "didlab/pkg/domain-errors"
)

// KeyPrefix marks generated API keys.
const KeyPrefix = "dlk_"

// Generate returns a random API key: KeyPrefix plus 32 random bytes, base64url.
func Generate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate key")
	}
	return KeyPrefix + base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash returns the bcrypt hash of key for use as a configured key.
func Hash(key string) (string, error) {
	if key == "" {
		return "", dErrors.New(dErrors.CodeValidation, "key cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeValidation, "key is too long")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not hash key")
	}
	return string(hashed), nil
}

// IsHash reports whether configured looks like a bcrypt hash rather than a
// plaintext key.
func IsHash(configured string) bool {
	return strings.HasPrefix(configured, "$2a$") ||
		strings.HasPrefix(configured, "$2b$") ||
		strings.HasPrefix(configured, "$2y$")
}

// Verify checks key against a bcrypt hash. A mismatch is CodeUnauthorized.
func Verify(key, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeUnauthorized, "invalid key")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not verify key")
	}
	return nil
}
