// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var (
	ErrInvalidAdminKey = errors.New("invalid admin key")
	ErrInvalidToken    = errors.New("invalid token format")
)

// CodeLength is the number of digits in a one-time code
const CodeLength = 6

// GenerateID creates a random hex ID of the specified byte length
func GenerateID(byteLen int) (string, error) {
	b := make([]byte, byteLen)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate random ID: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// AdminSubject is the string an admin key is derived from: the admin ID and
// the role the login subsystem assigned, so a key cannot be replayed under a
// different role.
func AdminSubject(adminID, role string) string {
	return adminID + ":" + role
}

// GenerateAdminKey creates an HMAC-based admin key for a subject
// This is deterministic and verifiable
func GenerateAdminKey(subject, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(subject))
	sum := h.Sum(nil)
	// Use URL-safe base64 and trim padding for cleaner keys
	return strings.TrimRight(base64.URLEncoding.EncodeToString(sum), "=")
}

// ValidateAdminKey checks if the provided admin key is valid for the subject
func ValidateAdminKey(subject, adminKey, salt string) error {
	expected := GenerateAdminKey(subject, salt)
	if !hmac.Equal([]byte(adminKey), []byte(expected)) {
		return ErrInvalidAdminKey
	}
	return nil
}

// GenerateSecretToken creates a random 24-byte (192-bit) URL-safe secret
func GenerateSecretToken() (string, error) {
	b := make([]byte, 24)
	_, err := rand.Read(b)
	if err != nil {
		return "", fmt.Errorf("failed to generate secret token: %w", err)
	}
	// URL-safe base64 without padding
	return strings.TrimRight(base64.URLEncoding.EncodeToString(b), "="), nil
}

// GenerateOneTimeCode returns a uniformly random 6-digit code, zero padded
func GenerateOneTimeCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("failed to generate one-time code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// ValidCodeFormat reports whether code is exactly six ASCII digits
func ValidCodeFormat(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// HashSecret returns the hex HMAC-SHA256 of the joined parts under key.
// Codes and tokens are only ever stored in this form.
func HashSecret(key string, parts ...string) string {
	h := hmac.New(sha256.New, []byte(key))
	h.Write([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h.Sum(nil))
}

// EqualHash compares two hex hashes in constant time
func EqualHash(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}

// EqualSecret compares a presented secret to the configured one in constant
// time. Both are hashed first so the comparison does not leak length.
func EqualSecret(presented, configured string) bool {
	p := sha256.Sum256([]byte(presented))
	c := sha256.Sum256([]byte(configured))
	return hmac.Equal(p[:], c[:])
}

// SplitCapabilityToken splits "<challengeID>.<secret>" into its parts
func SplitCapabilityToken(token string) (challengeID, secret string, err error) {
	i := strings.LastIndexByte(token, '.')
	if i <= 0 || i == len(token)-1 {
		return "", "", ErrInvalidToken
	}
	return token[:i], token[i+1:], nil
}
