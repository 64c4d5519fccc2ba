// Package bundle exports and imports deterministic TAR bundles of snapshot
// blocks.
//
// Bundles are the market's offline backup/restore format: an operator can
// export the blocks behind a pinned snapshot, move them to another archiver,
// and import them with full CID validation on both ends.
package bundle

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/ipfs/go-cid"

	"github.com/macterra/artx-market/content"
	"github.com/macterra/artx-market/storage"
)

// FormatVersion is the current bundle index schema version.
const FormatVersion = 1

type indexBlock struct {
	CID  string `json:"cid"`
	Size int    `json:"size"`
}

type indexLabel struct {
	Name string `json:"name"`
	CID  string `json:"cid"`
}

type indexJSON struct {
	Version   int          `json:"version"`
	CIDCodec  string       `json:"cidCodec"`
	Multihash string       `json:"multihash"`
	Blocks    []indexBlock `json:"blocks"`
	Labels    []indexLabel `json:"labels,omitempty"`
}

// ExportOptions controls bundle export behavior.
type ExportOptions struct {
	// Labels is optional, non-authoritative metadata mapping names (e.g.
	// "snapshot", "latest-cert") to CIDs.
	Labels map[string]cid.Cid
	// IncludeIndex controls whether index.json is included.
	IncludeIndex bool
}

// Export writes a deterministic TAR bundle containing the blocks for ids.
//
// Bundle bytes are deterministic: entry order is lexicographic and TAR
// headers are normalized. Every exported block is validated against its CID.
func Export(w io.Writer, store storage.BlockStore, ids []cid.Cid, opts ExportOptions) error {
	if store == nil {
		return fmt.Errorf("bundle: nil block store")
	}

	uniq := make(map[string]cid.Cid, len(ids))
	for _, id := range ids {
		if !id.Defined() {
			return storage.ErrInvalidCID
		}
		uniq[id.String()] = id
	}
	keys := make([]string, 0, len(uniq))
	for s := range uniq {
		keys = append(keys, s)
	}
	sort.Strings(keys)

	tw := tar.NewWriter(w)

	blocks := make([]indexBlock, 0, len(keys))
	for _, s := range keys {
		id := uniq[s]
		b, err := store.Get(id)
		if err != nil {
			_ = tw.Close()
			return err
		}
		got, err := content.CIDv1RawSHA256CID(b)
		if err != nil {
			_ = tw.Close()
			return err
		}
		if got != id {
			_ = tw.Close()
			return storage.ErrMismatch
		}
		if err := writeEntry(tw, "blocks/"+id.String(), b); err != nil {
			_ = tw.Close()
			return err
		}
		blocks = append(blocks, indexBlock{CID: id.String(), Size: len(b)})
	}

	if opts.IncludeIndex {
		idx := indexJSON{
			Version:   FormatVersion,
			CIDCodec:  "raw",
			Multihash: "sha2-256",
			Blocks:    blocks,
		}
		if len(opts.Labels) > 0 {
			names := make([]string, 0, len(opts.Labels))
			for k := range opts.Labels {
				names = append(names, k)
			}
			sort.Strings(names)
			for _, k := range names {
				if k == "" {
					_ = tw.Close()
					return fmt.Errorf("bundle: empty label key")
				}
				v := opts.Labels[k]
				if !v.Defined() {
					_ = tw.Close()
					return storage.ErrInvalidCID
				}
				idx.Labels = append(idx.Labels, indexLabel{Name: k, CID: v.String()})
			}
		}
		b, err := json.Marshal(idx)
		if err != nil {
			_ = tw.Close()
			return err
		}
		if err := writeEntry(tw, "index.json", b); err != nil {
			_ = tw.Close()
			return err
		}
	}

	return tw.Close()
}

// ImportOptions controls bundle import behavior.
type ImportOptions struct {
	// IgnoreUnknown allows unknown TAR entries to be skipped.
	// Default (false) is fail-closed.
	IgnoreUnknown bool
}

// Import reads a bundle from r and imports all blocks into store.
func Import(r io.Reader, store storage.BlockStore) error {
	return ImportWithOptions(r, store, ImportOptions{})
}

// ImportWithOptions reads a bundle from r and imports all blocks into store,
// validating each block against both its filename CID and the computed CID.
func ImportWithOptions(r io.Reader, store storage.BlockStore, opts ImportOptions) error {
	if store == nil {
		return fmt.Errorf("bundle: nil block store")
	}

	tr := tar.NewReader(r)
	seen := map[string]struct{}{}

	for {
		h, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		name := cleanTarPath(h.Name)
		if name == "" {
			return fmt.Errorf("bundle: invalid entry path: %q", h.Name)
		}

		if h.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return fmt.Errorf("bundle: unexpected tar entry type: %v (%s)", h.Typeflag, name)
		}

		// Non-authoritative metadata.
		if name == "index.json" {
			_, _ = io.Copy(io.Discard, tr)
			continue
		}

		if !strings.HasPrefix(name, "blocks/") {
			if opts.IgnoreUnknown {
				_, _ = io.Copy(io.Discard, tr)
				continue
			}
			return fmt.Errorf("bundle: unknown entry: %s", name)
		}

		id, derr := cid.Decode(strings.TrimPrefix(name, "blocks/"))
		if derr != nil || !id.Defined() {
			return storage.ErrInvalidCID
		}

		payload, rerr := io.ReadAll(tr)
		if rerr != nil {
			return rerr
		}
		got, herr := content.CIDv1RawSHA256CID(payload)
		if herr != nil {
			return herr
		}
		if got != id {
			return storage.ErrMismatch
		}

		key := id.String()
		if _, ok := seen[key]; ok {
			return fmt.Errorf("bundle: duplicate block entry: %s", key)
		}
		seen[key] = struct{}{}

		putID, perr := store.Put(payload)
		if perr != nil {
			return perr
		}
		if putID != id {
			return storage.ErrMismatch
		}
	}
}

func writeEntry(tw *tar.Writer, name string, data []byte) error {
	h := &tar.Header{
		Name:     name,
		Mode:     0o444,
		Size:     int64(len(data)),
		Typeflag: tar.TypeReg,
		Format:   tar.FormatPAX,
	}
	if err := tw.WriteHeader(h); err != nil {
		return err
	}
	_, err := io.Copy(tw, bytes.NewReader(data))
	return err
}

func cleanTarPath(name string) string {
	c := path.Clean(strings.TrimPrefix(name, "./"))
	if c == "." || c == ".." || strings.HasPrefix(c, "../") || path.IsAbs(c) {
		return ""
	}
	return c
}
