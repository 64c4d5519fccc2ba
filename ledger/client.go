// Package ledger is the market's boundary to the external blockchain
// archiver.
//
// The client carries no state of its own; every operation is a single
// request/response pair, and local market state is only ever updated after a
// successful response. A failed or duplicate call therefore never corrupts
// local state.
package ledger

import (
	"context"
	"time"

	"github.com/macterra/artx-market/cert"
)

// CommitEvent describes one auditable mutation of market data, appended to
// the archiver's commit log.
type CommitEvent struct {
	Type    string    `json:"type"`
	XID     string    `json:"xid,omitempty"`
	Agent   string    `json:"agent,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Client is the archiver contract.
//
// All operations are idempotent in intent and may fail transiently; callers
// treat KindTransient errors as "try again next tick". Certify returns
// (nil, nil) while the transaction is unconfirmed; that is the normal
// "still waiting" outcome, not an error.
type Client interface {
	// Ready reports whether the archiver is reachable and serving.
	Ready(ctx context.Context) error

	// Register requests initial anchoring of a content cid under a market id
	// and returns the pending transaction id.
	Register(ctx context.Context, marketID, contentCID string) (string, error)

	// Notarize requests a repeat anchoring round at an explicit fee rate.
	Notarize(ctx context.Context, marketID, contentCID string, fee int64) (string, error)

	// ReplaceByFee resubmits a still-unconfirmed transaction at a higher fee
	// rate and returns the replacement transaction id.
	ReplaceByFee(ctx context.Context, txnID string, fee int64) (string, error)

	// Certify polls for confirmation of a pending transaction.
	Certify(ctx context.Context, txnID string) (*cert.Certificate, error)

	// Pin content-addresses a data snapshot and returns its cid.
	Pin(ctx context.Context, path string) (string, error)

	// Commit appends an audit event to the commit log and returns its ref.
	Commit(ctx context.Context, event CommitEvent) (string, error)
}
