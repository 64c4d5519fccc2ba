// Package cert defines the notarization certificate record and its
// append-only store.
//
// A certificate is minted by the archiver once a notarization transaction
// confirms on chain. Certificates are immutable: once written they are never
// updated or deleted, and each one back-links the previous certificate so the
// full anchoring history of a market forms a verifiable chain.
package cert

import (
	"errors"
	"time"

	"github.com/ipfs/go-cid"

	"github.com/macterra/artx-market/content"
)

var (
	ErrNotFound   = errors.New("cert: certificate not found")
	ErrImmutable  = errors.New("cert: certificate already stored with different content")
	ErrBadLink    = errors.New("cert: prev link does not match prior certificate")
	ErrOutOfOrder = errors.New("cert: confirmation time precedes prior certificate")
)

// BlockRef locates the confirming block on the external ledger.
type BlockRef struct {
	Chain  string `json:"chain"`
	Hash   string `json:"hash"`
	Height int64  `json:"height"`
}

// TxnRef locates the notarization transaction inside the confirming block.
type TxnRef struct {
	ID    string `json:"id"`
	Index int    `json:"index"`
}

// Signature carries the archiver's signature over the certificate scope.
type Signature struct {
	Alg       string `json:"alg"`
	HashAlg   string `json:"hashAlg"`
	SignerKey string `json:"signerKey"`
	Value     string `json:"value"`
}

// Certificate is the immutable record of one confirmed notarization round.
//
// Prev is the id of the previous certificate for the same market, or ""
// for the first round. ConfirmedAt must be monotonically non-decreasing
// along the chain; an out-of-order confirmation is a detectable anomaly,
// never silently accepted (see ValidateChain).
type Certificate struct {
	ID          string    `json:"id"`
	MarketID    string    `json:"market"`
	CID         string    `json:"cid"`
	Block       BlockRef  `json:"block"`
	Txn         TxnRef    `json:"txn"`
	ConfirmedAt time.Time `json:"confirmed"`
	Prev        string    `json:"prev"`
	Signature   Signature `json:"signature"`
}

// CanonicalBytes returns the canonical JSON encoding of the certificate.
func (c *Certificate) CanonicalBytes() ([]byte, error) {
	return content.MarshalCanonical(c)
}

// ContentID returns the CID of the certificate's canonical bytes.
func (c *Certificate) ContentID() (cid.Cid, error) {
	b, err := c.CanonicalBytes()
	if err != nil {
		return cid.Undef, err
	}
	return content.CIDv1RawSHA256CID(b)
}

// SignatureScope returns the bytes the archiver signs: the canonical
// encoding with the signature value cleared. The signer key and algorithm
// fields stay in scope so they cannot be swapped after signing.
func (c *Certificate) SignatureScope() ([]byte, error) {
	scoped := *c
	scoped.Signature.Value = ""
	return content.MarshalCanonical(&scoped)
}

// Validate checks the certificate's required identity fields.
func (c *Certificate) Validate() error {
	if c.ID == "" {
		return errors.New("cert: missing id")
	}
	if c.MarketID == "" {
		return errors.New("cert: missing market id")
	}
	if c.CID == "" {
		return errors.New("cert: missing content cid")
	}
	if c.Txn.ID == "" {
		return errors.New("cert: missing txn id")
	}
	if c.ConfirmedAt.IsZero() {
		return errors.New("cert: missing confirmation time")
	}
	return nil
}

// ValidateChain enforces the certificate chain invariants between a newly
// confirmed certificate and its predecessor.
//
// next follows prev when:
// - next.Prev equals prev.ID (or prev is nil and next.Prev is empty)
// - both certificates bind the same market id
// - next.ConfirmedAt is not before prev.ConfirmedAt
func ValidateChain(next, prev *Certificate) error {
	if next == nil {
		return errors.New("cert: nil certificate")
	}
	if err := next.Validate(); err != nil {
		return err
	}
	if prev == nil {
		if next.Prev != "" {
			return ErrBadLink
		}
		return nil
	}
	if next.Prev != prev.ID {
		return ErrBadLink
	}
	if next.MarketID != prev.MarketID {
		return ErrBadLink
	}
	if next.ConfirmedAt.Before(prev.ConfirmedAt) {
		return ErrOutOfOrder
	}
	return nil
}
