package cryptoutils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DeriveSessionToken derives an opaque session token from a validated
// proof's signature and the caller's platform identity. The same proof
// presented by the same caller always maps to the same token, so a repeated
// authenticate call refreshes rather than duplicates the cache entry.
func DeriveSessionToken(signedProof []byte, callerID string) (string, error) {
	reader := hkdf.New(sha256.New, signedProof, []byte(callerID), []byte("role-proof-session"))

	token := make([]byte, 32)
	if _, err := io.ReadFull(reader, token); err != nil {
		return "", fmt.Errorf("session token derivation failed: %w", err)
	}

	return hex.EncodeToString(token), nil
}
