// Package auth provides API key generation and the authentication gate.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
)

// KeyBytes is the entropy of a generated key; keys are hex encoded.
const KeyBytes = 32

// KeyLen is the length of an encoded key.
const KeyLen = KeyBytes * 2

// maskedEdge is how many characters MaskKey leaves visible on each side.
const maskedEdge = 5

var keyFormatRegex = regexp.MustCompile(`^[a-f0-9]{64}$`)

// GenerateAPIKey returns a new random key, unrelated to any existing key.
func GenerateAPIKey() (string, error) {
	b := make([]byte, KeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ValidateKeyFormat reports whether key looks like a generated key.
func ValidateKeyFormat(key string) bool {
	return keyFormatRegex.MatchString(key)
}

// MaskKey keeps the first and last five characters of key for logging.
func MaskKey(key string) string {
	if len(key) <= maskedEdge*2 {
		return "[redacted]"
	}
	return key[:maskedEdge] + "..." + key[len(key)-maskedEdge:]
}

// ResolveMasterKey returns configured, or a freshly generated key when
// configured is empty. generated reports which happened.
func ResolveMasterKey(configured string) (key string, generated bool, err error) {
	if configured != "" {
		return configured, false, nil
	}
	key, err = GenerateAPIKey()
	if err != nil {
		return "", false, fmt.Errorf("generate master key: %w", err)
	}
	return key, true, nil
}
