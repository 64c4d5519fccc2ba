package ledger

import "github.com/macterra/artx-market/cert"

// Wire DTOs for the archiver HTTP API (JSON request/response bodies).
//
// These structs are the only types intended for direct JSON serialization at
// the archiver boundary; internal types never cross the wire directly.

type RegisterRequest struct {
	MarketID string `json:"market"`
	CID      string `json:"cid"`
}

type NotarizeRequest struct {
	MarketID string `json:"market"`
	CID      string `json:"cid"`
	Fee      int64  `json:"fee"`
}

type ReplaceByFeeRequest struct {
	TxnID string `json:"txn"`
	Fee   int64  `json:"fee"`
}

// TxnResponse carries the pending transaction id returned by register,
// notarize, and replace-by-fee.
type TxnResponse struct {
	TxnID string `json:"txn"`
}

type CertifyRequest struct {
	TxnID string `json:"txn"`
}

// CertifyResponse reports confirmation status. Certificate is nil while
// Confirmed is false.
type CertifyResponse struct {
	Confirmed   bool              `json:"confirmed"`
	Certificate *cert.Certificate `json:"certificate,omitempty"`
}

type PinRequest struct {
	Path string `json:"path"`
}

type PinResponse struct {
	CID string `json:"cid"`
}

type CommitRequest struct {
	Event CommitEvent `json:"event"`
}

type CommitResponse struct {
	Ref string `json:"ref"`
}

// ErrorResponse is the archiver's coded error payload.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
