// Package testkit provides the conformance harness every block store backend
// must pass, plus an in-memory store for tests.
package testkit

import (
	"bytes"
	"sync"
	"testing"

	"github.com/ipfs/go-cid"

	"github.com/macterra/artx-market/content"
	"github.com/macterra/artx-market/storage"
)

// NewStore constructs a fresh, empty block store for a test.
// The returned store MUST be isolated from other tests.
type NewStore func(t *testing.T) storage.BlockStore

// RunConformance exercises the storage.BlockStore contract.
func RunConformance(t *testing.T, newStore NewStore) {
	t.Helper()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		store := newStore(t)
		want := []byte("hello, artx storage")

		id, err := store.Put(want)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		wantID, err := content.CIDv1RawSHA256CID(want)
		if err != nil {
			t.Fatalf("CIDv1RawSHA256CID failed: %v", err)
		}
		if id != wantID {
			t.Fatalf("Put CID mismatch: got %s want %s", id, wantID)
		}

		got, err := store.Get(id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch")
		}
	})

	t.Run("PutIsIdempotent", func(t *testing.T) {
		store := newStore(t)
		data := []byte("same block twice")

		first, err := store.Put(data)
		if err != nil {
			t.Fatalf("first Put failed: %v", err)
		}
		second, err := store.Put(data)
		if err != nil {
			t.Fatalf("second Put failed: %v", err)
		}
		if first != second {
			t.Fatalf("idempotent Put returned differing CIDs: %s vs %s", first, second)
		}
	})

	t.Run("GetMissingIsNotFound", func(t *testing.T) {
		store := newStore(t)
		id, err := content.CIDv1RawSHA256CID([]byte("never stored"))
		if err != nil {
			t.Fatalf("CIDv1RawSHA256CID failed: %v", err)
		}
		if _, err := store.Get(id); !storage.IsNotFound(err) {
			t.Fatalf("Get missing: got %v want ErrNotFound", err)
		}
		if store.Has(id) {
			t.Fatalf("Has reported a missing block as present")
		}
	})

	t.Run("HasAfterPut", func(t *testing.T) {
		store := newStore(t)
		id, err := store.Put([]byte("present"))
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if !store.Has(id) {
			t.Fatalf("Has reported a stored block as absent")
		}
	})
}

// MemStore is an in-memory BlockStore for tests.
type MemStore struct {
	mu     sync.RWMutex
	blocks map[cid.Cid][]byte
}

var _ storage.BlockStore = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{blocks: make(map[cid.Cid][]byte)}
}

func (m *MemStore) Put(data []byte) (cid.Cid, error) {
	id, err := content.CIDv1RawSHA256CID(data)
	if err != nil {
		return cid.Undef, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blocks[id]; !ok {
		m.blocks[id] = append([]byte(nil), data...)
	}
	return id, nil
}

func (m *MemStore) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blocks[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *MemStore) Has(id cid.Cid) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blocks[id]
	return ok
}
