package keys

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"path/filepath"
	"strings"
	"testing"
)

func TestMarketID_DeterministicPerName(t *testing.T) {
	a := MarketID("alpha-market")
	b := MarketID("alpha-market")
	if a != b {
		t.Fatalf("MarketID not deterministic: %s vs %s", a, b)
	}
	if a == MarketID("beta-market") {
		t.Fatalf("distinct names produced the same id")
	}
	// uuid shape: 8-4-4-4-12
	if len(a) != 36 || strings.Count(a, "-") != 4 {
		t.Fatalf("unexpected id shape: %q", a)
	}
}

func TestSignerKeyFromSeed_RoundTripsThroughParse(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = 0x42
	}
	key, err := SignerKeyFromSeed(seed)
	if err != nil {
		t.Fatalf("SignerKeyFromSeed: %v", err)
	}
	if !strings.HasPrefix(key, "ed25519:") {
		t.Fatalf("missing alg prefix: %q", key)
	}
	pub, err := ParseEd25519SignerKey(key)
	if err != nil {
		t.Fatalf("ParseEd25519SignerKey: %v", err)
	}
	want := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	if !bytes.Equal(pub, want) {
		t.Fatalf("parsed key does not match derived public key")
	}
}

func TestParseEd25519SignerKey_RejectsMalformed(t *testing.T) {
	for _, in := range []string{
		"",
		"ed25519:",
		"ed25519:not-base64!!!",
		"rsa:AAAA",
		"ed25519:QUJD", // wrong length
	} {
		if _, err := ParseEd25519SignerKey(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestDeriveSignerSeed_PurposeSeparation(t *testing.T) {
	root := make([]byte, ed25519.SeedSize)
	for i := range root {
		root[i] = 0x07
	}
	a, err := DeriveSignerSeed(root, "certify")
	if err != nil {
		t.Fatalf("DeriveSignerSeed: %v", err)
	}
	b, err := DeriveSignerSeed(root, "commit")
	if err != nil {
		t.Fatalf("DeriveSignerSeed: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatalf("distinct purposes derived the same seed")
	}
	a2, err := DeriveSignerSeed(root, "certify")
	if err != nil {
		t.Fatalf("DeriveSignerSeed: %v", err)
	}
	if !bytes.Equal(a, a2) {
		t.Fatalf("derivation not deterministic")
	}
	if bytes.Equal(a, root) {
		t.Fatalf("derived seed equals root seed")
	}
}

func TestDeriveSignerSeed_RejectsBadPurpose(t *testing.T) {
	root := make([]byte, ed25519.SeedSize)
	if _, err := DeriveSignerSeed(root, ""); err == nil {
		t.Fatalf("expected error for empty purpose")
	}
	if _, err := DeriveSignerSeed(root, "has space"); err == nil {
		t.Fatalf("expected error for purpose with whitespace")
	}
}

func TestSignVerifyEd25519SHA256(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = 0x33
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	msg := []byte("notarize me")

	sig := SignEd25519SHA256(msg, priv)
	if err := VerifyEd25519SHA256(msg, sig, pub); err != nil {
		t.Fatalf("VerifyEd25519SHA256: %v", err)
	}
	if err := VerifyEd25519SHA256([]byte("other"), sig, pub); err == nil {
		t.Fatalf("expected verification failure for altered message")
	}
}

func TestSignVerifyDilithium3_DigestAgility(t *testing.T) {
	pub, priv, err := GenerateDilithium3Keypair(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateDilithium3Keypair: %v", err)
	}
	msg := []byte("post-quantum cert scope")

	for _, hashAlg := range []string{"sha256", "sha512", "sha3-256"} {
		sig, err := SignDilithium3(msg, hashAlg, priv)
		if err != nil {
			t.Fatalf("SignDilithium3(%s): %v", hashAlg, err)
		}
		if err := VerifyDilithium3(msg, hashAlg, sig, pub); err != nil {
			t.Fatalf("VerifyDilithium3(%s): %v", hashAlg, err)
		}
		if err := VerifyDilithium3([]byte("tampered"), hashAlg, sig, pub); err == nil {
			t.Fatalf("expected failure for tampered message (%s)", hashAlg)
		}
	}
}

func TestDigestFor_RejectsUnknownAlg(t *testing.T) {
	if _, err := DigestFor("md5", []byte("x")); err == nil {
		t.Fatalf("expected error for unsupported hash alg")
	}
}

func TestParseSeedHex(t *testing.T) {
	hex64 := strings.Repeat("ab", ed25519.SeedSize)
	seed, err := ParseSeedHex("0x" + hex64 + "\n")
	if err != nil {
		t.Fatalf("ParseSeedHex: %v", err)
	}
	if len(seed) != ed25519.SeedSize {
		t.Fatalf("unexpected seed length %d", len(seed))
	}
	if _, err := ParseSeedHex("abcd"); err == nil {
		t.Fatalf("expected error for short seed")
	}
	if _, err := ParseSeedHex("zz" + hex64[2:]); err == nil {
		t.Fatalf("expected error for non-hex input")
	}
}

func TestSeedFile_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed")
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	if err := SaveSeedFile(path, seed); err != nil {
		t.Fatalf("SaveSeedFile: %v", err)
	}
	got, err := LoadSeedFile(path)
	if err != nil {
		t.Fatalf("LoadSeedFile: %v", err)
	}
	if !bytes.Equal(got, seed) {
		t.Fatalf("loaded seed differs")
	}
	// Existing files are never overwritten.
	if err := SaveSeedFile(path, seed); err == nil {
		t.Fatalf("expected error overwriting existing seed file")
	}
}
