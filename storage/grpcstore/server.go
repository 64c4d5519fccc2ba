package grpcstore

import (
	"context"

	"github.com/ipfs/go-cid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/macterra/artx-market/content"
	"github.com/macterra/artx-market/storage"
)

// Server exposes a storage.BlockStore over the BlockStore gRPC service.
type Server struct {
	UnimplementedBlockStoreServer
	Store storage.BlockStore
}

func (s *Server) Put(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	_ = ctx
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing block store")
	}
	b := in.GetValue()
	// Enforce the CID contract on the server side too.
	expected, err := content.CIDv1RawSHA256CID(b)
	if err != nil {
		return nil, status.Error(codes.Internal, "cid computation failed")
	}
	id, err := s.Store.Put(b)
	if err != nil {
		return nil, toStatus(err)
	}
	if id != expected {
		return nil, status.Error(codes.DataLoss, storage.ErrMismatch.Error())
	}
	return wrapperspb.String(id.String()), nil
}

func (s *Server) Get(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing block store")
	}
	id, err := cid.Decode(in.GetValue())
	if err != nil || !id.Defined() {
		return nil, status.Error(codes.InvalidArgument, storage.ErrInvalidCID.Error())
	}
	b, err := s.Store.Get(id)
	if err != nil {
		return nil, toStatus(err)
	}
	got, err := content.CIDv1RawSHA256CID(b)
	if err != nil {
		return nil, status.Error(codes.Internal, "cid computation failed")
	}
	if got != id {
		return nil, status.Error(codes.DataLoss, storage.ErrMismatch.Error())
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Has(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	_ = ctx
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing block store")
	}
	id, err := cid.Decode(in.GetValue())
	if err != nil || !id.Defined() {
		return nil, status.Error(codes.InvalidArgument, storage.ErrInvalidCID.Error())
	}
	return wrapperspb.Bool(s.Store.Has(id)), nil
}

func toStatus(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case storage.IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case err == storage.ErrInvalidCID:
		return status.Error(codes.InvalidArgument, err.Error())
	case err == storage.ErrMismatch:
		return status.Error(codes.DataLoss, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
