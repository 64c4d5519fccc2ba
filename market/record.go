// Package market defines the persisted asset and agent records and their
// file-tree repository.
//
// Records cross-reference each other by identifier only: an asset's owner
// field names an agent xid, and an agent's index lists name asset xids.
// Nothing is embedded, so ownership stays acyclic while both directions
// remain navigable. The integrity engine (package integrity) is the only
// component allowed to repair these references.
package market

import (
	"errors"
	"time"
)

// Kind discriminates the asset payload variant.
type Kind string

const (
	KindFile       Kind = "file"
	KindCollection Kind = "collection"
	KindNFT        Kind = "nft"
)

// ErrAmbiguousKind flags a record matching none or multiple payload kinds.
var ErrAmbiguousKind = errors.New("market: asset matches zero or multiple payload kinds")

// Meta carries the fields common to every asset, keyed "asset" on disk.
type Meta struct {
	Owner   string    `json:"owner"`
	Title   string    `json:"title,omitempty"`
	Created time.Time `json:"created,omitempty"`
	Updated time.Time `json:"updated,omitempty"`
}

// FilePayload describes an uploaded file asset.
type FilePayload struct {
	Path string `json:"path,omitempty"`
	Size int64  `json:"size,omitempty"`
	Type string `json:"type,omitempty"`
	CID  string `json:"cid,omitempty"`

	// XID is a legacy shape: early records stored the identifier inside the
	// payload instead of at the top level. The integrity engine relocates it.
	XID string `json:"xid,omitempty"`
}

// CollectionPayload describes a collection asset.
type CollectionPayload struct {
	Assets        []string `json:"assets,omitempty"`
	DefaultTitle  string   `json:"defaultTitle,omitempty"`
	ThumbnailXID  string   `json:"thumbnail,omitempty"`

	XID string `json:"xid,omitempty"`
}

// NFTPayload describes a minted edition.
type NFTPayload struct {
	Token   string `json:"token,omitempty"`
	Edition int    `json:"edition,omitempty"`
	Of      int    `json:"editions,omitempty"`
	Price   int64  `json:"price,omitempty"`

	XID string `json:"xid,omitempty"`
}

// Asset is a created file, a collection, or a minted edition: a closed
// variant over exactly one payload kind.
type Asset struct {
	XID   string `json:"xid"`
	Asset *Meta  `json:"asset,omitempty"`

	File       *FilePayload       `json:"file,omitempty"`
	Collection *CollectionPayload `json:"collection,omitempty"`
	NFT        *NFTPayload        `json:"nft,omitempty"`
}

// Kind returns the asset's payload kind, or ErrAmbiguousKind when the record
// matches none or multiple variants.
func (a *Asset) Kind() (Kind, error) {
	var (
		kind  Kind
		count int
	)
	if a.File != nil {
		kind, count = KindFile, count+1
	}
	if a.Collection != nil {
		kind, count = KindCollection, count+1
	}
	if a.NFT != nil {
		kind, count = KindNFT, count+1
	}
	if count != 1 {
		return "", ErrAmbiguousKind
	}
	return kind, nil
}

// Owner returns the owning agent's xid, or "" when absent.
func (a *Asset) Owner() string {
	if a.Asset == nil {
		return ""
	}
	return a.Asset.Owner
}

// PayloadXID returns a legacy payload-level identifier, or "" when the
// record has the current shape.
func (a *Asset) PayloadXID() string {
	switch {
	case a.File != nil && a.File.XID != "":
		return a.File.XID
	case a.Collection != nil && a.Collection.XID != "":
		return a.Collection.XID
	case a.NFT != nil && a.NFT.XID != "":
		return a.NFT.XID
	}
	return ""
}

// ClearPayloadXID removes a legacy payload-level identifier.
func (a *Asset) ClearPayloadXID() {
	if a.File != nil {
		a.File.XID = ""
	}
	if a.Collection != nil {
		a.Collection.XID = ""
	}
	if a.NFT != nil {
		a.NFT.XID = ""
	}
}

// Agent is a market participant. The three index lists are back-references
// into asset storage, grouped by asset kind: created (files), collections,
// and collected (nfts).
//
// Credits is a pointer so a record missing the field (a repairable anomaly)
// is distinguishable from a zero balance.
type Agent struct {
	XID         string   `json:"xid"`
	Name        string   `json:"name,omitempty"`
	Credits     *int64   `json:"credits,omitempty"`
	Created     []string `json:"created"`
	Collected   []string `json:"collected"`
	Collections []string `json:"collections"`
}

// IndexFor returns the agent's index list holding assets of the given kind.
func (ag *Agent) IndexFor(kind Kind) []string {
	switch kind {
	case KindCollection:
		return ag.Collections
	case KindNFT:
		return ag.Collected
	default:
		return ag.Created
	}
}

// AppendIndex adds xid to the index list for kind, without deduplication
// (callers check membership first).
func (ag *Agent) AppendIndex(kind Kind, xid string) {
	switch kind {
	case KindCollection:
		ag.Collections = append(ag.Collections, xid)
	case KindNFT:
		ag.Collected = append(ag.Collected, xid)
	default:
		ag.Created = append(ag.Created, xid)
	}
}

// HasIndexed reports whether xid appears in the index list for kind.
func (ag *Agent) HasIndexed(kind Kind, xid string) bool {
	for _, id := range ag.IndexFor(kind) {
		if id == xid {
			return true
		}
	}
	return false
}
