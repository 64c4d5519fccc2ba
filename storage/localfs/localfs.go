// Package localfs is a filesystem-backed block store.
//
// Blocks live under root/<first-two-cid-chars>/<cid>, written once with
// O_EXCL and mode 0444. The store is offline and deterministic: it never
// touches the network and always validates served bytes against the
// requested CID, so out-of-band corruption surfaces as ErrMismatch rather
// than bad snapshot data.
package localfs

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"

	"github.com/macterra/artx-market/content"
	"github.com/macterra/artx-market/storage"
)

type Store struct {
	root string
}

var _ storage.BlockStore = (*Store)(nil)

// New constructs a block store rooted at root, creating the directory if
// needed.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("localfs: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root}, nil
}

func (s *Store) Put(bytes []byte) (cid.Cid, error) {
	id, err := content.CIDv1RawSHA256CID(bytes)
	if err != nil {
		return cid.Undef, err
	}
	if !id.Defined() {
		return cid.Undef, storage.ErrInvalidCID
	}

	path := s.pathFor(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return cid.Undef, err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o444)
	if err != nil {
		if os.IsExist(err) {
			// Idempotent re-put of identical bytes is fine; anything else is
			// an immutability violation.
			existing, rerr := s.Get(id)
			if rerr != nil {
				return cid.Undef, storage.ErrImmutable
			}
			if string(existing) != string(bytes) {
				return cid.Undef, storage.ErrImmutable
			}
			return id, nil
		}
		return cid.Undef, err
	}

	if _, err := f.Write(bytes); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return cid.Undef, err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return cid.Undef, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return cid.Undef, err
	}
	return id, nil
}

func (s *Store) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	b, err := os.ReadFile(s.pathFor(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	got, err := content.CIDv1RawSHA256CID(b)
	if err != nil {
		return nil, err
	}
	if got != id {
		return nil, storage.ErrMismatch
	}
	return b, nil
}

func (s *Store) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	_, err := os.Stat(s.pathFor(id))
	return err == nil
}

func (s *Store) pathFor(id cid.Cid) string {
	str := id.String()
	if len(str) < 2 {
		return filepath.Join(s.root, str)
	}
	return filepath.Join(s.root, str[:2], str)
}
