// Package cryptoutils implements the signature primitives behind the
// delegated role-proof protocol: canonical payload construction for the two
// delegation levels and EIP-191 personal-message signer recovery.
//
// Payloads are canonical JSON with a fixed key order so that the exact bytes
// signed by a wallet can be reconstructed server-side. Signatures are
// 65-byte [R || S || V] secp256k1 signatures over the EIP-191 prefixed hash
// of the payload, as produced by personal_sign.
package cryptoutils

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/tradelane/trade-finance-backend/interfaces"
)

// DelegatePayload reconstructs the canonical delegate-level message: the
// bytes the user wallet signed when the role credential was issued.
func DelegatePayload(delegate interfaces.Address, role interfaces.Role, credentialIDHash interfaces.Hash, expiresAt int64) []byte {
	return []byte(fmt.Sprintf(
		`{"delegateAddress":"%s","role":"%s","delegateCredentialIdHash":"%s","delegateCredentialExpiryDate":%d}`,
		delegate, role, credentialIDHash, expiresAt,
	))
}

// MembershipPayload reconstructs the canonical delegator-level message: the
// bytes the company wallet signed when membership was granted.
func MembershipPayload(credentialIDHash interfaces.Hash, expiresAt int64, delegator interfaces.Address) []byte {
	return []byte(fmt.Sprintf(
		`{"delegatorCredentialIdHash":"%s","delegatorCredentialExpiryDate":%d,"delegatorAddress":"%s"}`,
		credentialIDHash, expiresAt, delegator,
	))
}

// RecoverSigner recovers the address that produced sig over the EIP-191
// prefixed hash of payload. It accepts both raw recovery ids (0/1) and the
// wallet convention (27/28).
func RecoverSigner(payload []byte, sig []byte) (interfaces.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return interfaces.Address{}, fmt.Errorf("invalid signature length %d, expected %d", len(sig), crypto.SignatureLength)
	}

	// SigToPub expects the recovery id in the 0/1 range.
	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}

	pubkey, err := crypto.SigToPub(accounts.TextHash(payload), normalized)
	if err != nil {
		return interfaces.Address{}, fmt.Errorf("signature recovery failed: %w", err)
	}

	return interfaces.Address(crypto.PubkeyToAddress(*pubkey)), nil
}

// SignPayload signs the EIP-191 prefixed hash of payload with key, returning
// a 65-byte signature with the recovery id in wallet convention (27/28).
// It is used by the proof-issuing CLI and by tests; the service itself only
// ever recovers.
func SignPayload(payload []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(payload), key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// SignerAddress returns the address of a secp256k1 private key.
func SignerAddress(key *ecdsa.PrivateKey) interfaces.Address {
	return interfaces.Address(crypto.PubkeyToAddress(key.PublicKey))
}
