package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/splitsync/internal/common"
	"github.com/dmitrijs2005/splitsync/internal/syncrpc"
)

func (s *GRPCServer) Ping(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return encode(syncrpc.PingResponse{Status: syncrpc.StatusOK})
}

func (s *GRPCServer) Register(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req syncrpc.RegisterRequest
	if err := syncrpc.Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	id, err := s.accounts.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		return nil, s.toStatus(ctx, "register", err)
	}

	s.logger.Info(ctx, "Registered", "username", req.Username, "account_id", id)
	return encode(syncrpc.RegisterResponse{AccountID: id})
}

func (s *GRPCServer) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req syncrpc.LoginRequest
	if err := syncrpc.Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	id, token, err := s.accounts.Login(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			return nil, status.Error(codes.Unauthenticated, "unauthorized")
		}
		return nil, s.toStatus(ctx, "login", err)
	}

	return encode(syncrpc.LoginResponse{AccountID: id, AccessToken: token})
}

func (s *GRPCServer) Create(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	owner, ok := accountFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing account")
	}
	var req syncrpc.CreateRequest
	if err := syncrpc.Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	entity, err := s.records.Create(ctx, owner, req.EntityType, req.IdempotencyKey, req.Entity)
	if err != nil {
		return nil, s.toStatus(ctx, "create", err)
	}
	return encode(syncrpc.EntityResponse{Entity: entity})
}

func (s *GRPCServer) Update(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	owner, ok := accountFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing account")
	}
	var req syncrpc.UpdateRequest
	if err := syncrpc.Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	entity, err := s.records.Update(ctx, owner, req.EntityType, req.ID, req.Entity)
	if err != nil {
		return nil, s.toStatus(ctx, "update", err)
	}
	return encode(syncrpc.EntityResponse{Entity: entity})
}

func (s *GRPCServer) ListSince(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	owner, ok := accountFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing account")
	}
	var req syncrpc.ListSinceRequest
	if err := syncrpc.Decode(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	entities, serverTime, err := s.records.ListSince(ctx, owner, req.EntityType, req.Since, req.UserID)
	if err != nil {
		return nil, s.toStatus(ctx, "list", err)
	}
	return encode(syncrpc.ListSinceResponse{Entities: entities, ServerTime: serverTime})
}

func encode(v any) (*structpb.Struct, error) {
	out, err := syncrpc.Encode(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// toStatus maps service errors to gRPC codes. Unexpected errors are logged
// and hidden from the caller.
func (s *GRPCServer) toStatus(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	}
	s.logger.Error(ctx, "request failed", "op", op, "error", err)
	return status.Error(codes.Internal, "internal error")
}

var _ syncrpc.SyncServiceServer = (*GRPCServer)(nil)
