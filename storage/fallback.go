package storage

import (
	"errors"

	"github.com/ipfs/go-cid"
)

// Fallback reads across multiple block stores in a fixed, caller-supplied
// order.
//
// The slice order is the retrieval order; callers MUST supply a stable order
// so hydration stays deterministic. Put writes only to the first store.
type Fallback struct {
	Stores []BlockStore
}

var _ BlockStore = Fallback{}

func (f Fallback) Put(bytes []byte) (cid.Cid, error) {
	if len(f.Stores) == 0 {
		return cid.Undef, errors.New("storage: Fallback has no stores")
	}
	return f.Stores[0].Put(bytes)
}

func (f Fallback) Get(id cid.Cid) ([]byte, error) {
	for _, s := range f.Stores {
		b, err := s.Get(id)
		if err == nil {
			return b, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
	}
	return nil, ErrNotFound
}

func (f Fallback) Has(id cid.Cid) bool {
	for _, s := range f.Stores {
		if s.Has(id) {
			return true
		}
	}
	return false
}
