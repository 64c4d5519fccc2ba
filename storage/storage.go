// Package storage provides content-addressed block storage for market
// snapshots.
//
// Every committed market data snapshot is pinned as a set of immutable blocks
// keyed strictly by CID (CIDv1 raw + sha2-256, see package content). The
// archiver and backup tooling consume this interface; they never reach into a
// backend directly.
package storage

import (
	"errors"

	"github.com/ipfs/go-cid"
)

var (
	ErrNotFound   = errors.New("storage: block not found")
	ErrInvalidCID = errors.New("storage: invalid cid")
	ErrMismatch   = errors.New("storage: block bytes do not match cid")
	ErrImmutable  = errors.New("storage: immutable block mismatch")
)

// IsNotFound reports whether err indicates an absent block.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// BlockStore is the minimal content-addressable store contract.
//
// Contract:
// - Put MUST be idempotent.
// - Stored blocks MUST be immutable.
// - CIDs MUST be derived from the bytes written.
// - Get MUST return ErrNotFound when the CID is absent.
type BlockStore interface {
	Put(bytes []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}
