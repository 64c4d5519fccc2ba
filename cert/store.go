package cert

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Store persists certificates as one JSON object per file under a directory.
//
// The store is append-only: Put never overwrites. Re-putting a certificate
// with identical bytes is an idempotent no-op; differing bytes under the same
// id is ErrImmutable. There is no delete.
type Store struct {
	dir string
}

// NewStore opens (creating if needed) a certificate store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("cert: store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

// Put writes the certificate under a path derived from its id.
func (s *Store) Put(c *Certificate) error {
	if c == nil {
		return errors.New("cert: nil certificate")
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if !validID(c.ID) {
		return errors.New("cert: certificate id is not a valid file name")
	}

	b, err := c.CanonicalBytes()
	if err != nil {
		return err
	}

	path := s.pathFor(c.ID)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o444)
	if err != nil {
		if os.IsExist(err) {
			existing, rerr := os.ReadFile(path)
			if rerr != nil || string(existing) != string(b) {
				return ErrImmutable
			}
			return nil
		}
		return err
	}

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}

// Get loads a certificate by id, or ErrNotFound.
func (s *Store) Get(id string) (*Certificate, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	b, err := os.ReadFile(s.pathFor(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var c Certificate
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) pathFor(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// validID rejects ids that would escape the store directory when joined
// into a path.
func validID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`)
}
