// Package auth implements the Discord OAuth2 Authorization Code + PKCE flow:
// verifier/challenge generation, the local loopback callback server, the token
// exchange client and the lifecycle manager that keeps a stored session valid.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// PKCECodes is a verifier/challenge pair per RFC 7636, generated fresh for
// each authorization attempt and never persisted.
type PKCECodes struct {
	CodeVerifier  string
	CodeChallenge string
}

// GeneratePKCECodes generates a new PKCE pair. The verifier is a
// cryptographically random URL-safe string and the challenge is its S256
// transform, binding the eventual authorization code to this client.
func GeneratePKCECodes() (*PKCECodes, error) {
	verifier, err := generateCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}
	return &PKCECodes{
		CodeVerifier:  verifier,
		CodeChallenge: deriveCodeChallenge(verifier),
	}, nil
}

// generateCodeVerifier returns 64 random bytes encoded as URL-safe base64
// without padding (86 characters, within RFC 7636's 43-128 range).
func generateCodeVerifier() (string, error) {
	bytes := make([]byte, 64)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(bytes), nil
}

// deriveCodeChallenge computes the S256 challenge for a verifier:
// base64url(sha256(verifier)) without padding. Deterministic given verifier.
func deriveCodeChallenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(hash[:])
}
