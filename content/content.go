// Package content derives content addresses for market data.
//
// CID contract: CIDv1 with the "raw" multicodec and a sha2-256 multihash.
// Every identifier produced here is derived from canonical bytes; two values
// that marshal to the same bytes always share a CID.
package content

import (
	"encoding/json"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// CIDv1RawSHA256 returns the CIDv1 string (raw + sha2-256) for data.
func CIDv1RawSHA256(data []byte) string {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		// multihash.Sum only errors for invalid inputs; with SHA2_256 and -1
		// length this is unreachable.
		return ""
	}
	return cid.NewCidV1(cid.Raw, sum).String()
}

// CIDv1RawSHA256CID returns a CIDv1 (raw + sha2-256) derived from data.
func CIDv1RawSHA256CID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// MarshalCanonical marshals v to the canonical JSON encoding used for
// persisted market records: compact, struct field order, trailing newline.
//
// The trailing newline keeps on-disk records diff- and editor-friendly and is
// part of the byte contract (save suppression and CIDs both compare against
// these exact bytes).
func MarshalCanonical(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// CIDForRecord returns the CID of a record's canonical JSON bytes.
func CIDForRecord(v any) (cid.Cid, error) {
	b, err := MarshalCanonical(v)
	if err != nil {
		return cid.Undef, err
	}
	return CIDv1RawSHA256CID(b)
}
