package grpcstore

import (
	"context"
	"time"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/macterra/artx-market/content"
	"github.com/macterra/artx-market/storage"
)

// Client implements storage.BlockStore over the BlockStore gRPC service.
type Client struct {
	cc     *grpc.ClientConn
	client BlockStoreClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

var _ storage.BlockStore = (*Client)(nil)

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, client: NewBlockStoreClient(cc)}, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) ctx() (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(context.Background(), c.Timeout)
	}
	return context.Background(), func() {}
}

func (c *Client) Put(bytes []byte) (cid.Cid, error) {
	ctx, cancel := c.ctx()
	defer cancel()

	out, err := c.client.Put(ctx, wrapperspb.Bytes(bytes))
	if err != nil {
		return cid.Undef, fromStatus(err)
	}
	id, err := cid.Decode(out.GetValue())
	if err != nil || !id.Defined() {
		return cid.Undef, storage.ErrInvalidCID
	}
	// Do not trust the server's CID blindly.
	want, err := content.CIDv1RawSHA256CID(bytes)
	if err != nil {
		return cid.Undef, err
	}
	if id != want {
		return cid.Undef, storage.ErrMismatch
	}
	return id, nil
}

func (c *Client) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, storage.ErrInvalidCID
	}
	ctx, cancel := c.ctx()
	defer cancel()

	out, err := c.client.Get(ctx, wrapperspb.String(id.String()))
	if err != nil {
		return nil, fromStatus(err)
	}
	b := out.GetValue()
	got, err := content.CIDv1RawSHA256CID(b)
	if err != nil {
		return nil, err
	}
	if got != id {
		return nil, storage.ErrMismatch
	}
	return b, nil
}

func (c *Client) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	ctx, cancel := c.ctx()
	defer cancel()

	out, err := c.client.Has(ctx, wrapperspb.String(id.String()))
	if err != nil {
		return false
	}
	return out.GetValue()
}

// fromStatus translates service status codes back to storage sentinels so
// callers can branch with errors.Is regardless of transport.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return storage.ErrNotFound
	case codes.InvalidArgument:
		return storage.ErrInvalidCID
	case codes.DataLoss:
		return storage.ErrMismatch
	default:
		return err
	}
}
