package grpc

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/splitsync/internal/common"
	"github.com/dmitrijs2005/splitsync/internal/syncrpc"
)

type caller func(ctx context.Context, in any, out any) error

// rpc adapts a raw client method to typed request/response values.
func rpc(fn func(context.Context, *structpb.Struct, ...grpc.CallOption) (*structpb.Struct, error)) caller {
	return func(ctx context.Context, in any, out any) error {
		s, err := syncrpc.Encode(in)
		if err != nil {
			return err
		}
		resp, err := fn(ctx, s)
		if err != nil {
			return err
		}
		if out == nil {
			return nil
		}
		return syncrpc.Decode(resp, out)
	}
}

func login(t *testing.T, c syncrpc.SyncServiceClient, username string) (int64, context.Context) {
	t.Helper()
	ctx := context.Background()
	var reg syncrpc.RegisterResponse
	require.NoError(t, rpc(c.Register)(ctx, syncrpc.RegisterRequest{Username: username, Password: "pw"}, &reg))

	var resp syncrpc.LoginResponse
	require.NoError(t, rpc(c.Login)(ctx, syncrpc.LoginRequest{Username: username, Password: "pw"}, &resp))
	require.Equal(t, reg.AccountID, resp.AccountID)

	return resp.AccountID, metadata.AppendToOutgoingContext(ctx, common.AccessTokenHeaderName, resp.AccessToken)
}

func TestHandlers_Ping(t *testing.T) {
	c, _ := startServer(t)
	var resp syncrpc.PingResponse
	require.NoError(t, rpc(c.Ping)(context.Background(), struct{}{}, &resp))
	require.Equal(t, syncrpc.StatusOK, resp.Status)
}

func TestHandlers_RegisterAndLoginErrors(t *testing.T) {
	c, _ := startServer(t)
	ctx := context.Background()
	login(t, c, "ann")

	err := rpc(c.Register)(ctx, syncrpc.RegisterRequest{Username: "ann", Password: "x"}, nil)
	require.Equal(t, codes.AlreadyExists, status.Code(err))

	err = rpc(c.Register)(ctx, syncrpc.RegisterRequest{Username: "", Password: "x"}, nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	err = rpc(c.Login)(ctx, syncrpc.LoginRequest{Username: "ann", Password: "wrong"}, nil)
	require.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestHandlers_CreateUpdateList(t *testing.T) {
	c, _ := startServer(t)
	owner, ctx := login(t, c, "ann")

	create := syncrpc.CreateRequest{EntityType: "groups", IdempotencyKey: "dev:1", Entity: json.RawMessage(`{"name":"trip"}`)}
	var first, again syncrpc.EntityResponse
	require.NoError(t, rpc(c.Create)(ctx, create, &first))
	require.NoError(t, rpc(c.Create)(ctx, create, &again))
	require.JSONEq(t, string(first.Entity), string(again.Entity))

	var rec struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(first.Entity, &rec))

	var updated syncrpc.EntityResponse
	require.NoError(t, rpc(c.Update)(ctx, syncrpc.UpdateRequest{EntityType: "groups", ID: rec.ID, Entity: json.RawMessage(`{"name":"ski"}`)}, &updated))
	require.Contains(t, string(updated.Entity), `"ski"`)

	var list syncrpc.ListSinceResponse
	require.NoError(t, rpc(c.ListSince)(ctx, syncrpc.ListSinceRequest{EntityType: "groups", UserID: owner}, &list))
	require.Len(t, list.Entities, 1)
	require.NotEmpty(t, list.ServerTime)
}

func TestHandlers_ErrorCodes(t *testing.T) {
	c, _ := startServer(t)
	owner, ctx := login(t, c, "ann")

	err := rpc(c.Create)(ctx, syncrpc.CreateRequest{EntityType: "widgets", IdempotencyKey: "k", Entity: json.RawMessage(`{}`)}, nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	err = rpc(c.Update)(ctx, syncrpc.UpdateRequest{EntityType: "groups", ID: 999, Entity: json.RawMessage(`{}`)}, nil)
	require.Equal(t, codes.NotFound, status.Code(err))

	err = rpc(c.ListSince)(ctx, syncrpc.ListSinceRequest{EntityType: "groups", UserID: owner + 1}, nil)
	require.Equal(t, codes.PermissionDenied, status.Code(err))

	err = rpc(c.Create)(context.Background(), syncrpc.CreateRequest{EntityType: "groups", IdempotencyKey: "k", Entity: json.RawMessage(`{}`)}, nil)
	require.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestHandlers_RecordsAreOwnerScoped(t *testing.T) {
	c, _ := startServer(t)
	_, annCtx := login(t, c, "ann")
	bob, bobCtx := login(t, c, "bob")

	var created syncrpc.EntityResponse
	require.NoError(t, rpc(c.Create)(annCtx, syncrpc.CreateRequest{EntityType: "groups", IdempotencyKey: "k", Entity: json.RawMessage(`{}`)}, &created))

	var list syncrpc.ListSinceResponse
	require.NoError(t, rpc(c.ListSince)(bobCtx, syncrpc.ListSinceRequest{EntityType: "groups", UserID: bob}, &list))
	require.Empty(t, list.Entities)
}
