package archiver

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/macterra/artx-market/cert"
	"github.com/macterra/artx-market/ledger"
	"github.com/macterra/artx-market/storage/testkit"
)

func newService(t *testing.T, opts Options) *Service {
	t.Helper()
	s, err := New(testkit.NewMemStore(), opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func confirm(t *testing.T, s *Service, txn string) *cert.Certificate {
	t.Helper()
	for i := 0; i < 100; i++ {
		c, err := s.Certify(txn)
		if err != nil {
			t.Fatalf("Certify: %v", err)
		}
		if c != nil {
			return c
		}
	}
	t.Fatalf("txn %s never confirmed", txn)
	return nil
}

func TestCertify_ConfirmsAfterConfiguredPolls(t *testing.T) {
	s := newService(t, Options{ConfirmAfter: 3})
	txn, err := s.Register("market-1", "bafy-snapshot")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	for i := 0; i < 3; i++ {
		c, err := s.Certify(txn)
		if err != nil {
			t.Fatalf("Certify poll %d: %v", i, err)
		}
		if c != nil {
			t.Fatalf("confirmed too early on poll %d", i)
		}
	}
	c, err := s.Certify(txn)
	if err != nil {
		t.Fatalf("Certify: %v", err)
	}
	if c == nil {
		t.Fatalf("expected confirmation")
	}
	if c.MarketID != "market-1" || c.CID != "bafy-snapshot" || c.Txn.ID != txn {
		t.Fatalf("certificate binds wrong identity: %+v", c)
	}

	// Later polls return the same minted certificate.
	again, err := s.Certify(txn)
	if err != nil {
		t.Fatalf("Certify: %v", err)
	}
	if again.ID != c.ID {
		t.Fatalf("re-poll minted a new certificate")
	}
}

func TestCertify_UnknownTxnIsError(t *testing.T) {
	s := newService(t, Options{})
	if _, err := s.Certify("no-such-txn"); err == nil {
		t.Fatalf("expected error for unknown txn")
	}
}

func TestReplaceByFee_Semantics(t *testing.T) {
	s := newService(t, Options{ConfirmAfter: 100})
	txn, err := s.Notarize("market-1", "bafy-snapshot", 2)
	if err != nil {
		t.Fatalf("Notarize: %v", err)
	}

	// Fee must strictly increase.
	if _, err := s.ReplaceByFee(txn, 2); err == nil {
		t.Fatalf("expected error for equal fee")
	}
	if _, err := s.ReplaceByFee(txn, 1); err == nil {
		t.Fatalf("expected error for lower fee")
	}

	bumped, err := s.ReplaceByFee(txn, 4)
	if err != nil {
		t.Fatalf("ReplaceByFee: %v", err)
	}
	if bumped == txn {
		t.Fatalf("replacement reused the old txn id")
	}

	// The replaced txn never confirms and cannot be replaced again.
	if c, err := s.Certify(txn); err != nil || c != nil {
		t.Fatalf("replaced txn certify: c=%v err=%v", c, err)
	}
	if _, err := s.ReplaceByFee(txn, 8); err == nil {
		t.Fatalf("expected error replacing an already-replaced txn")
	}
}

func TestReplaceByFee_RejectsConfirmedTxn(t *testing.T) {
	s := newService(t, Options{ConfirmAfter: 0})
	txn, err := s.Notarize("market-1", "bafy-snapshot", 2)
	if err != nil {
		t.Fatalf("Notarize: %v", err)
	}
	confirm(t, s, txn)
	if _, err := s.ReplaceByFee(txn, 4); err == nil {
		t.Fatalf("expected error replacing a confirmed txn")
	}
}

func TestNotarize_RejectsNonPositiveFee(t *testing.T) {
	s := newService(t, Options{})
	if _, err := s.Notarize("market-1", "bafy-snapshot", 0); err == nil {
		t.Fatalf("expected error for zero fee")
	}
}

func TestMint_ChainsCertificatesPerMarket(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newService(t, Options{ConfirmAfter: 0, Now: func() time.Time { return now }})

	txn1, err := s.Register("market-1", "bafy-one")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	c1 := confirm(t, s, txn1)
	if c1.Prev != "" {
		t.Fatalf("first certificate has prev %q", c1.Prev)
	}

	now = now.Add(24 * time.Hour)
	txn2, err := s.Notarize("market-1", "bafy-two", 2)
	if err != nil {
		t.Fatalf("Notarize: %v", err)
	}
	c2 := confirm(t, s, txn2)
	if c2.Prev != c1.ID {
		t.Fatalf("second certificate prev=%q, want %q", c2.Prev, c1.ID)
	}
	if err := cert.ValidateChain(c2, c1); err != nil {
		t.Fatalf("ValidateChain: %v", err)
	}
	if c2.Block.Height <= c1.Block.Height {
		t.Fatalf("block height did not advance: %d then %d", c1.Block.Height, c2.Block.Height)
	}

	// A different market starts its own chain.
	txn3, err := s.Register("market-2", "bafy-other")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	c3 := confirm(t, s, txn3)
	if c3.Prev != "" {
		t.Fatalf("other market's first certificate has prev %q", c3.Prev)
	}
}

func TestMint_SignsWhenSeedConfigured(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = 0x77
	}
	s := newService(t, Options{ConfirmAfter: 0, SignSeed: seed})

	txn, err := s.Register("market-1", "bafy-snapshot")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	c := confirm(t, s, txn)
	ok, err := cert.VerifySignature(c)
	if err != nil {
		t.Fatalf("VerifySignature: %v", err)
	}
	if !ok {
		t.Fatalf("expected a verifiable signature")
	}
}

func TestPin_DeterministicForIdenticalTrees(t *testing.T) {
	s := newService(t, Options{})

	build := func(t *testing.T) string {
		dir := t.TempDir()
		if err := os.MkdirAll(filepath.Join(dir, "assets"), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		files := map[string]string{
			"assets/a.json": `{"xid":"a"}`,
			"agents.json":   `{"xid":"g"}`,
		}
		for name, body := range files {
			if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
		}
		return dir
	}

	id1, err := s.Pin(build(t))
	if err != nil {
		t.Fatalf("Pin: %v", err)
	}
	id2, err := s.Pin(build(t))
	if err != nil {
		t.Fatalf("Pin: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("identical trees pinned to different cids: %s vs %s", id1, id2)
	}
}

func TestPin_SingleFile(t *testing.T) {
	s := newService(t, Options{})
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte(`{"xid":"m"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	id, err := s.Pin(path)
	if err != nil {
		t.Fatalf("Pin: %v", err)
	}
	if id == "" {
		t.Fatalf("expected a cid")
	}
}

func TestCommit_RequiresMessage(t *testing.T) {
	s := newService(t, Options{})
	if _, err := s.Commit(ledger.CommitEvent{Type: "integrity.repair"}); err == nil {
		t.Fatalf("expected error for empty message")
	}
	ref, err := s.Commit(ledger.CommitEvent{Type: "integrity.repair", XID: "a", Message: "fixed index"})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if ref == "" {
		t.Fatalf("expected a commit ref")
	}
}
