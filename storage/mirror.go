package storage

import (
	"fmt"

	"github.com/ipfs/go-cid"

	"github.com/macterra/artx-market/content"
)

// Named associates a block store with a stable backend name, for per-backend
// reporting and audit trails.
type Named struct {
	Name  string
	Store BlockStore
}

// Mirror writes every block to all configured backends.
//
// Reads fall back in order. A write requires every backend to return the
// canonical CID; any disagreement is ErrMismatch, since a backend that
// rewrites bytes cannot be trusted to serve snapshots.
type Mirror struct {
	Backends []Named
}

var _ BlockStore = Mirror{}

// PutAll writes bytes to every backend and returns the canonical CID plus the
// per-backend CID map (useful for audit logging even on mismatch).
func (m Mirror) PutAll(bytes []byte) (cid.Cid, map[string]cid.Cid, error) {
	want, err := content.CIDv1RawSHA256CID(bytes)
	if err != nil {
		return cid.Undef, nil, err
	}
	if !want.Defined() {
		return cid.Undef, nil, ErrInvalidCID
	}
	if len(m.Backends) == 0 {
		return cid.Undef, nil, fmt.Errorf("storage: Mirror has no backends")
	}

	out := make(map[string]cid.Cid, len(m.Backends))
	for _, b := range m.Backends {
		if b.Store == nil {
			return cid.Undef, nil, fmt.Errorf("storage: nil store for backend %q", b.Name)
		}
		got, err := b.Store.Put(bytes)
		if err != nil {
			return cid.Undef, nil, err
		}
		out[b.Name] = got
		if got != want {
			return cid.Undef, out, ErrMismatch
		}
	}
	return want, out, nil
}

func (m Mirror) Put(bytes []byte) (cid.Cid, error) {
	id, _, err := m.PutAll(bytes)
	return id, err
}

func (m Mirror) Get(id cid.Cid) ([]byte, error) {
	for _, b := range m.Backends {
		if b.Store == nil {
			continue
		}
		out, err := b.Store.Get(id)
		if err == nil {
			return out, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

func (m Mirror) Has(id cid.Cid) bool {
	for _, b := range m.Backends {
		if b.Store != nil && b.Store.Has(id) {
			return true
		}
	}
	return false
}
