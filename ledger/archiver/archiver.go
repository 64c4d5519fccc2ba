// Package archiver is a self-contained archiver implementation of the ledger
// contract, backed by a content-addressed block store.
//
// It exists for development and single-operator deployments: notarization
// transactions are simulated (a transaction confirms after a configurable
// number of certify polls), but pinning, the commit log, certificate minting,
// chain linking, and signing behave exactly as a production archiver's.
package archiver

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"crypto/ed25519"

	"github.com/google/uuid"
	logging "github.com/ipfs/go-log/v2"

	"github.com/macterra/artx-market/cert"
	"github.com/macterra/artx-market/content"
	"github.com/macterra/artx-market/ledger"
	"github.com/macterra/artx-market/storage"
)

var log = logging.Logger("archiver")

// Options configures the archiver service.
type Options struct {
	// Chain is the chain id stamped into certificates (e.g. "tBTC").
	Chain string

	// ConfirmAfter is the number of certify polls before a transaction
	// confirms. Zero confirms on the first poll.
	ConfirmAfter int

	// SignSeed is an optional Ed25519 seed; when set, minted certificates
	// are signed.
	SignSeed []byte

	// Now overrides the clock (tests). Defaults to time.Now.
	Now func() time.Time
}

type txn struct {
	marketID string
	cid      string
	fee      int64
	polls    int
	cert     *cert.Certificate
	replaced bool
}

// Service implements ledger semantics locally.
type Service struct {
	mu     sync.Mutex
	blocks storage.BlockStore
	opts   Options
	signer ed25519.PrivateKey

	txns   map[string]*txn
	latest map[string]*cert.Certificate
	height int64
}

// New constructs a Service over the given block store.
func New(blocks storage.BlockStore, opts Options) (*Service, error) {
	if blocks == nil {
		return nil, fmt.Errorf("archiver: nil block store")
	}
	if opts.Chain == "" {
		opts.Chain = "tBTC"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Service{
		blocks: blocks,
		opts:   opts,
		txns:   make(map[string]*txn),
		latest: make(map[string]*cert.Certificate),
	}
	if len(opts.SignSeed) > 0 {
		if len(opts.SignSeed) != ed25519.SeedSize {
			return nil, fmt.Errorf("archiver: sign seed must be %d bytes", ed25519.SeedSize)
		}
		s.signer = ed25519.NewKeyFromSeed(opts.SignSeed)
	}
	return s, nil
}

// Ready reports service readiness.
func (s *Service) Ready() error {
	if s == nil || s.blocks == nil {
		return fmt.Errorf("archiver: not ready")
	}
	return nil
}

// Register opens a pending anchoring transaction for a market's content cid.
func (s *Service) Register(marketID, contentCID string) (string, error) {
	return s.open(marketID, contentCID, 0)
}

// Notarize opens a pending re-anchoring transaction at an explicit fee rate.
func (s *Service) Notarize(marketID, contentCID string, fee int64) (string, error) {
	if fee <= 0 {
		return "", fmt.Errorf("archiver: fee must be positive")
	}
	return s.open(marketID, contentCID, fee)
}

func (s *Service) open(marketID, contentCID string, fee int64) (string, error) {
	if marketID == "" {
		return "", fmt.Errorf("archiver: missing market id")
	}
	if contentCID == "" {
		return "", fmt.Errorf("archiver: missing content cid")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.txns[id] = &txn{marketID: marketID, cid: contentCID, fee: fee}
	log.Infow("opened txn", "txn", id, "market", marketID, "cid", contentCID, "fee", fee)
	return id, nil
}

// ReplaceByFee resubmits a still-unconfirmed transaction at a higher fee.
func (s *Service) ReplaceByFee(txnID string, fee int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.txns[txnID]
	if !ok {
		return "", fmt.Errorf("archiver: unknown txn %q", txnID)
	}
	if old.cert != nil {
		return "", fmt.Errorf("archiver: txn %q already confirmed", txnID)
	}
	if old.replaced {
		return "", fmt.Errorf("archiver: txn %q already replaced", txnID)
	}
	if fee <= old.fee {
		return "", fmt.Errorf("archiver: replacement fee %d not above %d", fee, old.fee)
	}

	old.replaced = true
	id := uuid.NewString()
	s.txns[id] = &txn{marketID: old.marketID, cid: old.cid, fee: fee, polls: old.polls}
	log.Infow("replaced txn", "old", txnID, "new", id, "fee", fee)
	return id, nil
}

// Certify polls a pending transaction. It returns (nil, nil) until the
// transaction confirms, then the minted certificate on every later poll.
func (s *Service) Certify(txnID string) (*cert.Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.txns[txnID]
	if !ok {
		return nil, fmt.Errorf("archiver: unknown txn %q", txnID)
	}
	if t.cert != nil {
		return t.cert, nil
	}
	if t.replaced {
		// A replaced transaction never confirms.
		return nil, nil
	}
	if t.polls < s.opts.ConfirmAfter {
		t.polls++
		return nil, nil
	}
	return s.mint(txnID, t)
}

func (s *Service) mint(txnID string, t *txn) (*cert.Certificate, error) {
	s.height++
	blockHash := content.CIDv1RawSHA256([]byte(fmt.Sprintf("%s/%d/%s", s.opts.Chain, s.height, txnID)))

	c := &cert.Certificate{
		ID:       uuid.NewString(),
		MarketID: t.marketID,
		CID:      t.cid,
		Block: cert.BlockRef{
			Chain:  s.opts.Chain,
			Hash:   blockHash,
			Height: s.height,
		},
		Txn:         cert.TxnRef{ID: txnID, Index: 0},
		ConfirmedAt: s.opts.Now().UTC(),
	}
	if prev := s.latest[t.marketID]; prev != nil {
		c.Prev = prev.ID
	}
	if s.signer != nil {
		if err := cert.SignEd25519(c, s.signer); err != nil {
			return nil, err
		}
	}
	if err := cert.ValidateChain(c, s.latest[t.marketID]); err != nil {
		return nil, err
	}

	t.cert = c
	s.latest[t.marketID] = c
	log.Infow("minted certificate", "cert", c.ID, "market", t.marketID, "height", s.height, "txn", txnID)
	return c, nil
}

// Pin content-addresses the file or file tree at path and returns the
// manifest cid. Every file's bytes are stored as blocks; the manifest maps
// relative paths to block cids in sorted order, so identical trees always
// pin to identical cids.
func (s *Service) Pin(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	entries := map[string]string{}
	if !info.IsDir() {
		id, err := s.putFile(path)
		if err != nil {
			return "", err
		}
		entries[filepath.Base(path)] = id
	} else {
		err := filepath.WalkDir(path, func(p string, d os.DirEntry, werr error) error {
			if werr != nil {
				return werr
			}
			if d.IsDir() {
				return nil
			}
			id, err := s.putFile(p)
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(path, p)
			if err != nil {
				return err
			}
			entries[filepath.ToSlash(rel)] = id
			return nil
		})
		if err != nil {
			return "", err
		}
	}

	manifest, err := marshalManifest(entries)
	if err != nil {
		return "", err
	}
	id, err := s.blocks.Put(manifest)
	if err != nil {
		return "", err
	}
	log.Infow("pinned snapshot", "path", path, "files", len(entries), "cid", id.String())
	return id.String(), nil
}

func (s *Service) putFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	id, err := s.blocks.Put(b)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Commit appends an audit event to the commit log. The ref is the cid of the
// event's canonical bytes, so the log entry is itself content-addressed and
// tamper-evident.
func (s *Service) Commit(event ledger.CommitEvent) (string, error) {
	if event.Message == "" {
		return "", fmt.Errorf("archiver: commit event requires a message")
	}
	if event.At.IsZero() {
		event.At = s.opts.Now().UTC()
	}
	b, err := content.MarshalCanonical(event)
	if err != nil {
		return "", err
	}
	id, err := s.blocks.Put(b)
	if err != nil {
		return "", err
	}
	log.Infow("commit", "type", event.Type, "xid", event.XID, "ref", id.String())
	return id.String(), nil
}

func marshalManifest(entries map[string]string) ([]byte, error) {
	type entry struct {
		Path string `json:"path"`
		CID  string `json:"cid"`
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]entry, 0, len(keys))
	for _, k := range keys {
		out = append(out, entry{Path: k, CID: entries[k]})
	}
	return json.Marshal(out)
}
