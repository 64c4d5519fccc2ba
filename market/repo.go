package market

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/macterra/artx-market/content"
)

var ErrNotFound = errors.New("market: record not found")

// Repo is the file-tree-backed store of asset and agent records: one JSON
// object per entity under assets/ and agents/.
//
// Saves are suppressed when the serialized bytes match what is on disk, so
// no-op writes never churn the commit log. Writers are serialized per key;
// reads are safe concurrently since records are immutable snapshots between
// writes. Enumeration order is directory order, unspecified, and never to
// be relied on for correctness.
type Repo struct {
	root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRepo opens (creating if needed) a repository rooted at root.
func NewRepo(root string) (*Repo, error) {
	if root == "" {
		return nil, errors.New("market: repo root is required")
	}
	for _, sub := range []string{"assets", "agents"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, err
		}
	}
	return &Repo{root: root, locks: make(map[string]*sync.Mutex)}, nil
}

// validKey reports whether an id is safe to join into the record tree. Ids
// with path separators or dot segments could address files outside it; a
// corrupted index entry must never become a path traversal.
func validKey(xid string) bool {
	if xid == "" || xid == "." || xid == ".." {
		return false
	}
	return !strings.ContainsAny(xid, `/\`)
}

// keyLock returns the mutex serializing writes to one record.
func (r *Repo) keyLock(key string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	return l
}

// GetAsset loads an asset record, or ErrNotFound.
func (r *Repo) GetAsset(xid string) (*Asset, error) {
	if !validKey(xid) {
		return nil, ErrNotFound
	}
	var a Asset
	if err := r.read(r.assetPath(xid), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveAsset persists an asset record, writing only if the serialized content
// differs from what is on disk.
func (r *Repo) SaveAsset(a *Asset) error {
	if a == nil || !validKey(a.XID) {
		return errors.New("market: asset requires a well-formed xid")
	}
	l := r.keyLock("asset/" + a.XID)
	l.Lock()
	defer l.Unlock()
	return r.write(r.assetPath(a.XID), a)
}

// RemoveAsset deletes an asset record's storage entirely. Used only by the
// integrity engine's quarantine policy and explicit removal flows.
func (r *Repo) RemoveAsset(xid string) error {
	if !validKey(xid) {
		return ErrNotFound
	}
	l := r.keyLock("asset/" + xid)
	l.Lock()
	defer l.Unlock()
	err := os.Remove(r.assetPath(xid))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	return err
}

// GetAgent loads an agent record, or ErrNotFound.
func (r *Repo) GetAgent(xid string) (*Agent, error) {
	if !validKey(xid) {
		return nil, ErrNotFound
	}
	var ag Agent
	if err := r.read(r.agentPath(xid), &ag); err != nil {
		return nil, err
	}
	return &ag, nil
}

// SaveAgent persists an agent record with the same write-suppression
// contract as SaveAsset. Agents are never deleted.
func (r *Repo) SaveAgent(ag *Agent) error {
	if ag == nil || !validKey(ag.XID) {
		return errors.New("market: agent requires a well-formed xid")
	}
	l := r.keyLock("agent/" + ag.XID)
	l.Lock()
	defer l.Unlock()
	return r.write(r.agentPath(ag.XID), ag)
}

// ListAssetIDs enumerates all asset xids in directory order.
func (r *Repo) ListAssetIDs() ([]string, error) {
	return r.list(filepath.Join(r.root, "assets"))
}

// ListAgentIDs enumerates all agent xids in directory order.
func (r *Repo) ListAgentIDs() ([]string, error) {
	return r.list(filepath.Join(r.root, "agents"))
}

// Root returns the repository root directory (pinned by the archiver).
func (r *Repo) Root() string { return r.root }

func (r *Repo) assetPath(xid string) string {
	return filepath.Join(r.root, "assets", xid+".json")
}

func (r *Repo) agentPath(xid string) string {
	return filepath.Join(r.root, "agents", xid+".json")
}

func (r *Repo) read(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return err
	}
	return json.Unmarshal(b, v)
}

func (r *Repo) write(path string, v any) error {
	b, err := content.MarshalCanonical(v)
	if err != nil {
		return err
	}
	if existing, err := os.ReadFile(path); err == nil && string(existing) == string(b) {
		return nil
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (r *Repo) list(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) != ".json" {
			continue
		}
		ids = append(ids, name[:len(name)-len(".json")])
	}
	return ids, nil
}
