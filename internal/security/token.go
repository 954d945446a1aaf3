// Package security provides session token generation, token digests, and
// device fingerprint derivation.
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// tokenBytes is the entropy of a raw session token (256 bits).
const tokenBytes = 32

// NewSessionToken returns a fresh high-entropy opaque bearer token.
// The raw value is handed to the caller exactly once; only its digest is stored.
func NewSessionToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// DigestToken returns a SHA-256 hash of the token string, hex-encoded.
// Used for storing and comparing session tokens without storing the raw token.
func DigestToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// TokenDigestEqual performs constant-time comparison of the provided token's
// digest with the stored digest. Returns true only if they match.
func TokenDigestEqual(providedToken, storedDigest string) bool {
	providedDigest := DigestToken(providedToken)
	return subtle.ConstantTimeCompare([]byte(providedDigest), []byte(storedDigest)) == 1
}
