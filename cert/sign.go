package cert

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"

	"github.com/macterra/artx-market/keys"
)

// SignEd25519 populates the certificate signature using an Ed25519 key.
//
// The signature covers SignatureScope (the certificate with the signature
// value cleared), so algorithm and signer key are tamper-evident.
func SignEd25519(c *Certificate, priv ed25519.PrivateKey) error {
	signerKey, err := keys.SignerKeyFromPublicKey(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return err
	}
	c.Signature = Signature{Alg: "ed25519", HashAlg: "sha256", SignerKey: signerKey}
	scope, err := c.SignatureScope()
	if err != nil {
		return err
	}
	c.Signature.Value = keys.SignEd25519SHA256(scope, priv)
	return nil
}

// SignDilithium3 populates the certificate signature using a Dilithium3 key.
func SignDilithium3(c *Certificate, hashAlg string, pub *mode3.PublicKey, priv *mode3.PrivateKey) error {
	if pub == nil || priv == nil {
		return errors.New("cert: missing dilithium3 keypair")
	}
	pubBytes, err := pub.MarshalBinary()
	if err != nil {
		return err
	}
	c.Signature = Signature{
		Alg:       "dilithium3",
		HashAlg:   hashAlg,
		SignerKey: "dilithium3:" + base64.StdEncoding.EncodeToString(pubBytes),
	}
	scope, err := c.SignatureScope()
	if err != nil {
		return err
	}
	sig, err := keys.SignDilithium3(scope, hashAlg, priv)
	if err != nil {
		return err
	}
	c.Signature.Value = sig
	return nil
}

// VerifySignature verifies the certificate's signature, if present.
//
// Returns (true, nil) for a signed certificate that verifies.
// Returns (false, nil) for an unsigned certificate.
// Returns (false, err) for malformed or invalid signatures.
func VerifySignature(c *Certificate) (bool, error) {
	sig := c.Signature
	if sig.Value == "" && sig.SignerKey == "" && sig.Alg == "" {
		return false, nil
	}
	// Partially populated signatures are invalid.
	if sig.Value == "" || sig.SignerKey == "" || sig.Alg == "" || sig.HashAlg == "" {
		return false, errors.New("cert: incomplete signature fields")
	}

	scope, err := c.SignatureScope()
	if err != nil {
		return false, err
	}

	switch sig.Alg {
	case "ed25519":
		if sig.HashAlg != "sha256" {
			return false, fmt.Errorf("cert: unsupported hash alg %q for ed25519", sig.HashAlg)
		}
		pub, err := keys.ParseEd25519SignerKey(sig.SignerKey)
		if err != nil {
			return false, err
		}
		if err := keys.VerifyEd25519SHA256(scope, sig.Value, pub); err != nil {
			return false, err
		}
		return true, nil
	case "dilithium3":
		const prefix = "dilithium3:"
		if !strings.HasPrefix(sig.SignerKey, prefix) {
			return false, fmt.Errorf("cert: signer key does not match alg %q", sig.Alg)
		}
		pubBytes, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sig.SignerKey, prefix))
		if err != nil {
			return false, fmt.Errorf("cert: invalid signer key encoding: %w", err)
		}
		var pub mode3.PublicKey
		if err := pub.UnmarshalBinary(pubBytes); err != nil {
			return false, fmt.Errorf("cert: invalid dilithium3 public key: %w", err)
		}
		if err := keys.VerifyDilithium3(scope, sig.HashAlg, sig.Value, &pub); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, fmt.Errorf("cert: unsupported signature alg %q", sig.Alg)
	}
}
