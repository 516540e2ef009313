// Package grpc serves the SyncService contract of package syncrpc.
package grpc

import (
	"context"
	"encoding/json"
	"net"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/splitsync/internal/logging"
	"github.com/dmitrijs2005/splitsync/internal/syncrpc"
)

type AccountService interface {
	Register(ctx context.Context, username, email, password string) (int64, error)
	Login(ctx context.Context, username, password string) (int64, string, error)
}

type RecordService interface {
	Create(ctx context.Context, ownerID int64, entityType, clientKey string, entity json.RawMessage) (json.RawMessage, error)
	Update(ctx context.Context, ownerID int64, entityType string, id int64, entity json.RawMessage) (json.RawMessage, error)
	ListSince(ctx context.Context, ownerID int64, entityType, since string, userID int64) ([]json.RawMessage, string, error)
}

type GRPCServer struct {
	address   string
	accounts  AccountService
	records   RecordService
	logger    logging.Logger
	jwtSecret []byte
	metrics   *Metrics
}

// NewGRPCServer builds the server. m may be nil.
func NewGRPCServer(address string, l logging.Logger, as AccountService, rs RecordService, secretKey []byte, m *Metrics) *GRPCServer {
	return &GRPCServer{
		address:   address,
		logger:    l.With("module", "grpc_server"),
		accounts:  as,
		records:   rs,
		jwtSecret: secretKey,
		metrics:   m,
	}
}

// NewServer creates a grpc.Server with the interceptors installed and the
// sync service registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.metricsInterceptor, s.accessTokenInterceptor))
	srv := grpc.NewServer(opts...)
	syncrpc.RegisterSyncServiceServer(srv, s)
	return srv
}

// Serve accepts connections on lis until ctx is cancelled, then stops
// gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.NewServer()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())
	if err := srv.Serve(lis); err != nil {
		return err
	}
	<-stopped
	return nil
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}
