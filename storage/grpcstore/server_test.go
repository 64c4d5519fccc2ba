package grpcstore

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/macterra/artx-market/content"
	"github.com/macterra/artx-market/storage"
	"github.com/macterra/artx-market/storage/testkit"
)

func TestServer_PutGetHasRoundTrip(t *testing.T) {
	srv := &Server{Store: testkit.NewMemStore()}
	ctx := context.Background()
	data := []byte("block over the wire")

	out, err := srv.Put(ctx, wrapperspb.Bytes(data))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	want := content.CIDv1RawSHA256(data)
	if out.GetValue() != want {
		t.Fatalf("Put CID %q want %q", out.GetValue(), want)
	}

	got, err := srv.Get(ctx, wrapperspb.String(want))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.GetValue()) != string(data) {
		t.Fatalf("Get returned %q", got.GetValue())
	}

	has, err := srv.Has(ctx, wrapperspb.String(want))
	if err != nil {
		t.Fatalf("Has: %v", err)
	}
	if !has.GetValue() {
		t.Fatalf("Has reported stored block as absent")
	}
}

func TestServer_GetMissingIsNotFound(t *testing.T) {
	srv := &Server{Store: testkit.NewMemStore()}
	id := content.CIDv1RawSHA256([]byte("never stored"))

	_, err := srv.Get(context.Background(), wrapperspb.String(id))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("Get missing: code %v want NotFound", status.Code(err))
	}
}

func TestServer_GetBadCIDIsInvalidArgument(t *testing.T) {
	srv := &Server{Store: testkit.NewMemStore()}

	_, err := srv.Get(context.Background(), wrapperspb.String("not-a-cid"))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("Get bad cid: code %v want InvalidArgument", status.Code(err))
	}
	_, err = srv.Has(context.Background(), wrapperspb.String("not-a-cid"))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("Has bad cid: code %v want InvalidArgument", status.Code(err))
	}
}

func TestServer_MissingStoreIsFailedPrecondition(t *testing.T) {
	srv := &Server{}
	_, err := srv.Put(context.Background(), wrapperspb.Bytes([]byte("x")))
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("Put without store: code %v want FailedPrecondition", status.Code(err))
	}
}

func TestStatusMapping_RoundTripsSentinels(t *testing.T) {
	for _, tc := range []struct {
		in   error
		want error
	}{
		{storage.ErrNotFound, storage.ErrNotFound},
		{storage.ErrInvalidCID, storage.ErrInvalidCID},
		{storage.ErrMismatch, storage.ErrMismatch},
	} {
		if got := fromStatus(toStatus(tc.in)); !errors.Is(got, tc.want) {
			t.Fatalf("fromStatus(toStatus(%v)) = %v", tc.in, got)
		}
	}
	if got := fromStatus(status.Error(codes.Unavailable, "down")); status.Code(got) != codes.Unavailable {
		t.Fatalf("unknown codes must pass through, got %v", got)
	}
	if fromStatus(nil) != nil {
		t.Fatalf("nil must map to nil")
	}
}
