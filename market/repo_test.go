package market

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestRepo_AssetRoundTrip(t *testing.T) {
	repo, err := NewRepo(t.TempDir())
	if err != nil {
		t.Fatalf("NewRepo: %v", err)
	}
	a := &Asset{
		XID:   "asset-1",
		Asset: &Meta{Owner: "agent-1", Title: "sunset"},
		File:  &FilePayload{Path: "sunset.png", Size: 1024, Type: "image/png"},
	}
	if err := repo.SaveAsset(a); err != nil {
		t.Fatalf("SaveAsset: %v", err)
	}
	got, err := repo.GetAsset("asset-1")
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if got.Owner() != "agent-1" {
		t.Fatalf("owner %q", got.Owner())
	}
	kind, err := got.Kind()
	if err != nil || kind != KindFile {
		t.Fatalf("kind %q err %v", kind, err)
	}
}

func TestRepo_GetMissingIsNotFound(t *testing.T) {
	repo, err := NewRepo(t.TempDir())
	if err != nil {
		t.Fatalf("NewRepo: %v", err)
	}
	if _, err := repo.GetAsset("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.GetAgent("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.RemoveAsset("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRepo_RejectsPathEscapingIDs(t *testing.T) {
	repo, err := NewRepo(t.TempDir())
	if err != nil {
		t.Fatalf("NewRepo: %v", err)
	}
	for _, xid := range []string{"../escape", "a/b", `a\b`, "..", "."} {
		if _, err := repo.GetAsset(xid); !errors.Is(err, ErrNotFound) {
			t.Fatalf("GetAsset(%q): expected ErrNotFound, got %v", xid, err)
		}
		if _, err := repo.GetAgent(xid); !errors.Is(err, ErrNotFound) {
			t.Fatalf("GetAgent(%q): expected ErrNotFound, got %v", xid, err)
		}
		if err := repo.RemoveAsset(xid); !errors.Is(err, ErrNotFound) {
			t.Fatalf("RemoveAsset(%q): expected ErrNotFound, got %v", xid, err)
		}
		a := &Asset{XID: xid, Asset: &Meta{Owner: "g"}, File: &FilePayload{}}
		if err := repo.SaveAsset(a); err == nil {
			t.Fatalf("SaveAsset accepted xid %q", xid)
		}
		if err := repo.SaveAgent(&Agent{XID: xid}); err == nil {
			t.Fatalf("SaveAgent accepted xid %q", xid)
		}
	}
}

func TestRepo_SaveSuppressesIdenticalWrites(t *testing.T) {
	root := t.TempDir()
	repo, err := NewRepo(root)
	if err != nil {
		t.Fatalf("NewRepo: %v", err)
	}
	credits := int64(100)
	ag := &Agent{XID: "agent-1", Name: "mel", Credits: &credits}
	if err := repo.SaveAgent(ag); err != nil {
		t.Fatalf("SaveAgent: %v", err)
	}

	path := filepath.Join(root, "agents", "agent-1.json")
	info1, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if err := repo.SaveAgent(ag); err != nil {
		t.Fatalf("re-SaveAgent: %v", err)
	}
	info2, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if !info1.ModTime().Equal(info2.ModTime()) {
		t.Fatalf("identical save rewrote the record")
	}
}

func TestRepo_ListIDs(t *testing.T) {
	repo, err := NewRepo(t.TempDir())
	if err != nil {
		t.Fatalf("NewRepo: %v", err)
	}
	for _, xid := range []string{"a1", "a2", "a3"} {
		a := &Asset{XID: xid, Asset: &Meta{Owner: "g"}, File: &FilePayload{}}
		if err := repo.SaveAsset(a); err != nil {
			t.Fatalf("SaveAsset: %v", err)
		}
	}
	ids, err := repo.ListAssetIDs()
	if err != nil {
		t.Fatalf("ListAssetIDs: %v", err)
	}
	sort.Strings(ids)
	if len(ids) != 3 || ids[0] != "a1" || ids[2] != "a3" {
		t.Fatalf("unexpected ids: %v", ids)
	}

	agents, err := repo.ListAgentIDs()
	if err != nil {
		t.Fatalf("ListAgentIDs: %v", err)
	}
	if len(agents) != 0 {
		t.Fatalf("expected no agents, got %v", agents)
	}
}

func TestRepo_RemoveAssetDeletesStorage(t *testing.T) {
	repo, err := NewRepo(t.TempDir())
	if err != nil {
		t.Fatalf("NewRepo: %v", err)
	}
	a := &Asset{XID: "doomed", Asset: &Meta{Owner: "g"}, NFT: &NFTPayload{Token: "tok"}}
	if err := repo.SaveAsset(a); err != nil {
		t.Fatalf("SaveAsset: %v", err)
	}
	if err := repo.RemoveAsset("doomed"); err != nil {
		t.Fatalf("RemoveAsset: %v", err)
	}
	if _, err := repo.GetAsset("doomed"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after removal, got %v", err)
	}
}

func TestAsset_KindIsExclusive(t *testing.T) {
	a := &Asset{XID: "x", Asset: &Meta{Owner: "g"}}
	if _, err := a.Kind(); !errors.Is(err, ErrAmbiguousKind) {
		t.Fatalf("expected ErrAmbiguousKind for no payload, got %v", err)
	}
	a.File = &FilePayload{}
	a.NFT = &NFTPayload{}
	if _, err := a.Kind(); !errors.Is(err, ErrAmbiguousKind) {
		t.Fatalf("expected ErrAmbiguousKind for two payloads, got %v", err)
	}
}

func TestAsset_PayloadXIDRelocationHelpers(t *testing.T) {
	a := &Asset{Collection: &CollectionPayload{XID: "legacy-1"}}
	if got := a.PayloadXID(); got != "legacy-1" {
		t.Fatalf("PayloadXID %q", got)
	}
	a.ClearPayloadXID()
	if a.PayloadXID() != "" {
		t.Fatalf("payload xid not cleared")
	}
}

func TestAgent_IndexHelpers(t *testing.T) {
	ag := &Agent{XID: "g"}
	ag.AppendIndex(KindFile, "f1")
	ag.AppendIndex(KindNFT, "n1")
	ag.AppendIndex(KindCollection, "c1")

	if !ag.HasIndexed(KindFile, "f1") || !ag.HasIndexed(KindNFT, "n1") || !ag.HasIndexed(KindCollection, "c1") {
		t.Fatalf("index membership broken: %+v", ag)
	}
	if ag.HasIndexed(KindFile, "n1") {
		t.Fatalf("kinds must not share index lists")
	}
	if len(ag.Created) != 1 || len(ag.Collected) != 1 || len(ag.Collections) != 1 {
		t.Fatalf("unexpected index shapes: %+v", ag)
	}
}
