package admin

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/macterra/artx-market/content"
	"github.com/macterra/artx-market/keys"
)

// State is the market's single piece of mutable global state: one JSON
// object per market instance.
//
// Invariants: at most one pending transaction at a time; LatestCert, once
// set, always names an existing certificate. The state machine (Machine) is
// the only mutator; State is never deleted.
type State struct {
	ID      string    `json:"xid"`
	Name    string    `json:"name"`
	CID     string    `json:"cid,omitempty"`
	Pending string    `json:"pending,omitempty"`
	// LatestCert points at the most recently confirmed certificate.
	LatestCert string    `json:"latest,omitempty"`
	Created    time.Time `json:"created"`
	Updated    time.Time `json:"updated"`
}

// StateStore persists the admin state under a single file, creating it
// lazily on first load with a deterministic market id.
type StateStore struct {
	path string
	name string
	now  func() time.Time
}

// NewStateStore manages state at path for the market named name.
func NewStateStore(path, name string) (*StateStore, error) {
	if path == "" {
		return nil, errors.New("admin: state path is required")
	}
	if name == "" {
		return nil, errors.New("admin: market name is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &StateStore{path: path, name: name, now: time.Now}, nil
}

// Load returns the current state, creating and persisting a fresh one on
// first access.
func (s *StateStore) Load() (*State, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		now := s.now().UTC()
		st := &State{
			ID:      keys.MarketID(s.name),
			Name:    s.name,
			Created: now,
			Updated: now,
		}
		if err := s.Save(st); err != nil {
			return nil, err
		}
		return st, nil
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Save persists state, writing only if the serialized content differs from
// what is on disk. The Updated stamp changes only when a write happens.
func (s *StateStore) Save(st *State) error {
	if st == nil {
		return errors.New("admin: nil state")
	}

	// Compare without the Updated stamp so a pure re-save stays a no-op.
	probe := *st
	if existing, err := os.ReadFile(s.path); err == nil {
		var cur State
		if json.Unmarshal(existing, &cur) == nil {
			probe.Updated = cur.Updated
			b, merr := content.MarshalCanonical(&probe)
			if merr == nil && string(b) == string(existing) {
				return nil
			}
		}
	}

	st.Updated = s.now().UTC()
	b, err := content.MarshalCanonical(st)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
