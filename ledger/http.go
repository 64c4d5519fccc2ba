package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/macterra/artx-market/cert"
)

// Endpoint paths served by the archiver.
const (
	PathReady        = "/api/v1/ready"
	PathRegister     = "/api/v1/register"
	PathNotarize     = "/api/v1/notarize"
	PathReplaceByFee = "/api/v1/replace-by-fee"
	PathCertify      = "/api/v1/certify"
	PathPin          = "/api/v1/pin"
	PathCommit       = "/api/v1/commit"
)

// DefaultTimeout bounds each archiver call. A timed-out call is reported as
// KindTransient, same as any other transport failure.
const DefaultTimeout = 30 * time.Second

// HTTPClient implements Client against an archiver HTTP endpoint.
type HTTPClient struct {
	base string
	http *http.Client
}

var _ Client = (*HTTPClient)(nil)

type HTTPOptions struct {
	// Timeout applies per call when non-zero; DefaultTimeout otherwise.
	Timeout time.Duration
}

// NewHTTPClient constructs a client for the archiver at base
// (e.g. "http://localhost:5115").
func NewHTTPClient(base string, opts HTTPOptions) (*HTTPClient, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("ledger: invalid archiver endpoint %q", base)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}, nil
}

func (c *HTTPClient) Ready(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, PathReady, nil, nil)
}

func (c *HTTPClient) Register(ctx context.Context, marketID, contentCID string) (string, error) {
	var out TxnResponse
	err := c.call(ctx, http.MethodPost, PathRegister, RegisterRequest{MarketID: marketID, CID: contentCID}, &out)
	if err != nil {
		return "", err
	}
	if out.TxnID == "" {
		return "", newError(KindProtocol, "register", "archiver returned empty txn id")
	}
	return out.TxnID, nil
}

func (c *HTTPClient) Notarize(ctx context.Context, marketID, contentCID string, fee int64) (string, error) {
	var out TxnResponse
	err := c.call(ctx, http.MethodPost, PathNotarize, NotarizeRequest{MarketID: marketID, CID: contentCID, Fee: fee}, &out)
	if err != nil {
		return "", err
	}
	if out.TxnID == "" {
		return "", newError(KindProtocol, "notarize", "archiver returned empty txn id")
	}
	return out.TxnID, nil
}

func (c *HTTPClient) ReplaceByFee(ctx context.Context, txnID string, fee int64) (string, error) {
	var out TxnResponse
	err := c.call(ctx, http.MethodPost, PathReplaceByFee, ReplaceByFeeRequest{TxnID: txnID, Fee: fee}, &out)
	if err != nil {
		return "", err
	}
	if out.TxnID == "" {
		return "", newError(KindProtocol, "replace-by-fee", "archiver returned empty txn id")
	}
	return out.TxnID, nil
}

func (c *HTTPClient) Certify(ctx context.Context, txnID string) (*cert.Certificate, error) {
	var out CertifyResponse
	if err := c.call(ctx, http.MethodPost, PathCertify, CertifyRequest{TxnID: txnID}, &out); err != nil {
		return nil, err
	}
	if !out.Confirmed {
		return nil, nil
	}
	if out.Certificate == nil {
		return nil, newError(KindProtocol, "certify", "confirmed response missing certificate")
	}
	return out.Certificate, nil
}

func (c *HTTPClient) Pin(ctx context.Context, path string) (string, error) {
	var out PinResponse
	if err := c.call(ctx, http.MethodPost, PathPin, PinRequest{Path: path}, &out); err != nil {
		return "", err
	}
	if out.CID == "" {
		return "", newError(KindProtocol, "pin", "archiver returned empty cid")
	}
	return out.CID, nil
}

func (c *HTTPClient) Commit(ctx context.Context, event CommitEvent) (string, error) {
	var out CommitResponse
	if err := c.call(ctx, http.MethodPost, PathCommit, CommitRequest{Event: event}, &out); err != nil {
		return "", err
	}
	return out.Ref, nil
}

// call performs one JSON request/response pair. Transport failures and 5xx
// statuses map to KindTransient; 4xx statuses map to KindProtocol with the
// archiver's coded error message when present.
func (c *HTTPClient) call(ctx context.Context, method, path string, in, out any) error {
	op := strings.TrimPrefix(path, "/api/v1/")

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return wrapError(KindInternal, op, "encode request", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return wrapError(KindInternal, op, "build request", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return wrapError(KindTransient, op, "archiver unreachable", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return wrapError(KindTransient, op, "read response", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return newError(KindTransient, op, fmt.Sprintf("archiver error: %s", strings.TrimSpace(string(payload))))
	case resp.StatusCode >= 400:
		var coded ErrorResponse
		if json.Unmarshal(payload, &coded) == nil && coded.Message != "" {
			return newError(KindProtocol, op, fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
		return newError(KindProtocol, op, fmt.Sprintf("archiver rejected request: status %d", resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return wrapError(KindProtocol, op, "decode response", err)
	}
	return nil
}
