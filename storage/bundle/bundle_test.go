package bundle

import (
	"archive/tar"
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/ipfs/go-cid"

	"github.com/macterra/artx-market/content"
	"github.com/macterra/artx-market/storage"
	"github.com/macterra/artx-market/storage/testkit"
)

func putBlocks(t *testing.T, store storage.BlockStore, payloads ...string) []cid.Cid {
	t.Helper()
	ids := make([]cid.Cid, 0, len(payloads))
	for _, p := range payloads {
		id, err := store.Put([]byte(p))
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestExportImport_RoundTrip(t *testing.T) {
	src := testkit.NewMemStore()
	ids := putBlocks(t, src, "block one", "block two", "block three")

	var buf bytes.Buffer
	if err := Export(&buf, src, ids, ExportOptions{IncludeIndex: true}); err != nil {
		t.Fatalf("Export: %v", err)
	}

	dst := testkit.NewMemStore()
	if err := Import(bytes.NewReader(buf.Bytes()), dst); err != nil {
		t.Fatalf("Import: %v", err)
	}
	for _, id := range ids {
		if !dst.Has(id) {
			t.Fatalf("imported store missing block %s", id)
		}
	}
}

func TestExport_Deterministic(t *testing.T) {
	src := testkit.NewMemStore()
	ids := putBlocks(t, src, "aaa", "bbb", "ccc")

	var a, b bytes.Buffer
	if err := Export(&a, src, ids, ExportOptions{IncludeIndex: true}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	// Reversed id order must not change the bundle bytes.
	rev := []cid.Cid{ids[2], ids[1], ids[0]}
	if err := Export(&b, src, rev, ExportOptions{IncludeIndex: true}); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Fatalf("bundle bytes depend on input order")
	}
}

func TestExport_DeduplicatesIDs(t *testing.T) {
	src := testkit.NewMemStore()
	ids := putBlocks(t, src, "only once")

	var buf bytes.Buffer
	dup := []cid.Cid{ids[0], ids[0], ids[0]}
	if err := Export(&buf, src, dup, ExportOptions{}); err != nil {
		t.Fatalf("Export: %v", err)
	}

	tr := tar.NewReader(bytes.NewReader(buf.Bytes()))
	entries := 0
	for {
		_, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar: %v", err)
		}
		entries++
	}
	if entries != 1 {
		t.Fatalf("expected 1 entry, got %d", entries)
	}
}

func TestImport_RejectsCorruptedBlock(t *testing.T) {
	// Hand-build a bundle whose entry name claims a CID the payload does not
	// hash to.
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	id, err := content.CIDv1RawSHA256CID([]byte("claimed bytes"))
	if err != nil {
		t.Fatalf("cid: %v", err)
	}
	if err := writeEntry(tw, "blocks/"+id.String(), []byte("actual bytes")); err != nil {
		t.Fatalf("writeEntry: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	err = Import(bytes.NewReader(buf.Bytes()), testkit.NewMemStore())
	if !errors.Is(err, storage.ErrMismatch) {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}
}

func TestImport_FailsClosedOnUnknownEntries(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := writeEntry(tw, "extra/readme.txt", []byte("surprise")); err != nil {
		t.Fatalf("writeEntry: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := Import(bytes.NewReader(buf.Bytes()), testkit.NewMemStore()); err == nil {
		t.Fatalf("expected error for unknown entry")
	}
	err := ImportWithOptions(bytes.NewReader(buf.Bytes()), testkit.NewMemStore(), ImportOptions{IgnoreUnknown: true})
	if err != nil {
		t.Fatalf("ImportWithOptions(IgnoreUnknown): %v", err)
	}
}

func TestImport_RejectsDuplicateBlocks(t *testing.T) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	data := []byte("twice")
	id, err := content.CIDv1RawSHA256CID(data)
	if err != nil {
		t.Fatalf("cid: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := writeEntry(tw, "blocks/"+id.String(), data); err != nil {
			t.Fatalf("writeEntry: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := Import(bytes.NewReader(buf.Bytes()), testkit.NewMemStore()); err == nil {
		t.Fatalf("expected error for duplicate block entry")
	}
}

func TestExport_RejectsMissingBlock(t *testing.T) {
	src := testkit.NewMemStore()
	id, err := content.CIDv1RawSHA256CID([]byte("never stored"))
	if err != nil {
		t.Fatalf("cid: %v", err)
	}
	var buf bytes.Buffer
	if err := Export(&buf, src, []cid.Cid{id}, ExportOptions{}); !storage.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
