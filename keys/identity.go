// Package keys provides market identity derivation and certificate signing
// primitives.
//
// All derivations here are pure and deterministic: the same market name
// always yields the same market id, and the same seed always yields the same
// signer key. Nothing in this package touches the network.
package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// MarketID derives the stable market identifier from the configured market
// name/host. UUIDv5 over the DNS namespace keeps ids stable across restarts
// and re-deployments of the same market.
func MarketID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(name)).String()
}

// SignerKeyFromSeed returns the signer key string for an Ed25519 seed:
// "ed25519:" + base64(pubkey).
func SignerKeyFromSeed(seed []byte) (string, error) {
	if len(seed) != ed25519.SeedSize {
		return "", fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return SignerKeyFromPublicKey(priv.Public().(ed25519.PublicKey))
}

// SignerKeyFromPublicKey encodes an Ed25519 public key into the signer-key
// string format.
func SignerKeyFromPublicKey(pub ed25519.PublicKey) (string, error) {
	if l := len(pub); l != ed25519.PublicKeySize {
		return "", fmt.Errorf("ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, l)
	}
	return "ed25519:" + base64.StdEncoding.EncodeToString(pub), nil
}

// ParseEd25519SignerKey decodes an "ed25519:<base64>" signer key.
func ParseEd25519SignerKey(s string) (ed25519.PublicKey, error) {
	const prefix = "ed25519:"
	if len(s) <= len(prefix) || s[:len(prefix)] != prefix {
		return nil, fmt.Errorf("unsupported signer key %q", s)
	}
	b, err := base64.StdEncoding.DecodeString(s[len(prefix):])
	if err != nil {
		return nil, fmt.Errorf("invalid signer key encoding: %w", err)
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, errors.New("invalid signer key length")
	}
	return ed25519.PublicKey(b), nil
}

// DeriveSignerSeed deterministically derives a purpose-specific Ed25519 seed
// from a root seed. Purposes keep archiver signing keys separated from any
// future market keys sharing the same root.
func DeriveSignerSeed(rootSeed []byte, purpose string) ([]byte, error) {
	if len(rootSeed) != ed25519.SeedSize {
		return nil, fmt.Errorf("root seed must be %d bytes", ed25519.SeedSize)
	}
	if err := checkPurpose(purpose); err != nil {
		return nil, err
	}

	h := sha256.New()
	_, _ = h.Write(rootSeed)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("artx-market-keys-v1"))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("purpose:"))
	_, _ = h.Write([]byte(purpose))
	sum := h.Sum(nil)
	if len(sum) < ed25519.SeedSize {
		return nil, errors.New("kdf output too short")
	}
	out := make([]byte, ed25519.SeedSize)
	copy(out, sum[:ed25519.SeedSize])
	return out, nil
}

func checkPurpose(purpose string) error {
	if purpose == "" {
		return errors.New("purpose cannot be empty")
	}
	for _, char := range purpose {
		if (char >= 'a' && char <= 'z') || (char >= '0' && char <= '9') || char == '-' {
			continue
		}
		return fmt.Errorf("invalid character %q in purpose", char)
	}
	return nil
}
