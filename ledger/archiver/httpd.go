package archiver

import (
	"encoding/json"
	"net/http"

	"github.com/macterra/artx-market/ledger"
)

// Handler serves the archiver HTTP API over a Service.
//
// Each endpoint is a single JSON request/response pair; there is no
// streaming. Validation failures return a coded error payload with status
// 400 so clients can surface the archiver's reason verbatim.
func Handler(s *Service) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(ledger.PathReady, func(w http.ResponseWriter, r *http.Request) {
		if err := s.Ready(); err != nil {
			writeError(w, http.StatusServiceUnavailable, "NOT_READY", err)
			return
		}
		writeJSON(w, map[string]bool{"ready": true})
	})

	mux.HandleFunc(ledger.PathRegister, post(func(w http.ResponseWriter, r *http.Request) {
		var req ledger.RegisterRequest
		if !decode(w, r, &req) {
			return
		}
		txn, err := s.Register(req.MarketID, req.CID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err)
			return
		}
		writeJSON(w, ledger.TxnResponse{TxnID: txn})
	}))

	mux.HandleFunc(ledger.PathNotarize, post(func(w http.ResponseWriter, r *http.Request) {
		var req ledger.NotarizeRequest
		if !decode(w, r, &req) {
			return
		}
		txn, err := s.Notarize(req.MarketID, req.CID, req.Fee)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err)
			return
		}
		writeJSON(w, ledger.TxnResponse{TxnID: txn})
	}))

	mux.HandleFunc(ledger.PathReplaceByFee, post(func(w http.ResponseWriter, r *http.Request) {
		var req ledger.ReplaceByFeeRequest
		if !decode(w, r, &req) {
			return
		}
		txn, err := s.ReplaceByFee(req.TxnID, req.Fee)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err)
			return
		}
		writeJSON(w, ledger.TxnResponse{TxnID: txn})
	}))

	mux.HandleFunc(ledger.PathCertify, post(func(w http.ResponseWriter, r *http.Request) {
		var req ledger.CertifyRequest
		if !decode(w, r, &req) {
			return
		}
		c, err := s.Certify(req.TxnID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err)
			return
		}
		writeJSON(w, ledger.CertifyResponse{Confirmed: c != nil, Certificate: c})
	}))

	mux.HandleFunc(ledger.PathPin, post(func(w http.ResponseWriter, r *http.Request) {
		var req ledger.PinRequest
		if !decode(w, r, &req) {
			return
		}
		id, err := s.Pin(req.Path)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err)
			return
		}
		writeJSON(w, ledger.PinResponse{CID: id})
	}))

	mux.HandleFunc(ledger.PathCommit, post(func(w http.ResponseWriter, r *http.Request) {
		var req ledger.CommitRequest
		if !decode(w, r, &req) {
			return
		}
		ref, err := s.Commit(req.Event)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err)
			return
		}
		writeJSON(w, ledger.CommitResponse{Ref: ref})
	}))

	return mux
}

func post(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ledger.ErrorResponse{Code: code, Message: err.Error()})
}
