package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/splitsync/internal/client/models"
	"github.com/dmitrijs2005/splitsync/internal/common"
	"github.com/dmitrijs2005/splitsync/internal/syncrpc"
)

const (
	DefaultMaxRetries = 3
	DefaultRetryBase  = 200 * time.Millisecond
)

type GRPCClient struct {
	endpointURL string
	dialOptions []grpc.DialOption
	conn        *grpc.ClientConn
	client      syncrpc.SyncServiceClient

	mu          sync.RWMutex
	accessToken string

	maxRetries uint64
	retryBase  time.Duration
}

type Option func(*GRPCClient)

// WithRetry sets how often idempotent calls are retried while the server is
// unavailable and the first backoff delay.
func WithRetry(maxRetries uint64, base time.Duration) Option {
	return func(c *GRPCClient) {
		c.maxRetries = maxRetries
		c.retryBase = base
	}
}

// WithDialOptions adds options used when connecting.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *GRPCClient) {
		c.dialOptions = append(c.dialOptions, opts...)
	}
}

func NewGRPCClient(endpointURL string, opts ...Option) (*GRPCClient, error) {
	c := &GRPCClient{
		endpointURL: endpointURL,
		maxRetries:  DefaultMaxRetries,
		retryBase:   DefaultRetryBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	}, s.dialOptions...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = syncrpc.NewSyncServiceClient(conn)
	return nil
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)
	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if token := s.AccessToken(); token != "" {
		ctx = withAccessToken(ctx, token)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

func (s *GRPCClient) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

func (s *GRPCClient) SetAccessToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = token
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	var resp syncrpc.PingResponse
	if err := s.call(ctx, true, s.client.Ping, struct{}{}, &resp); err != nil {
		return err
	}
	if resp.Status != syncrpc.StatusOK {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) Register(ctx context.Context, username, email, password string) (int64, error) {
	req := syncrpc.RegisterRequest{Username: username, Email: email, Password: password}
	var resp syncrpc.RegisterResponse
	if err := s.call(ctx, false, s.client.Register, req, &resp); err != nil {
		return 0, err
	}
	return resp.AccountID, nil
}

func (s *GRPCClient) Login(ctx context.Context, username, password string) (int64, error) {
	req := syncrpc.LoginRequest{Username: username, Password: password}
	var resp syncrpc.LoginResponse
	if err := s.call(ctx, false, s.client.Login, req, &resp); err != nil {
		return 0, err
	}
	s.SetAccessToken(resp.AccessToken)
	return resp.AccountID, nil
}

// Create is retried: the idempotency key makes a repeated create return the
// record stored the first time.
func (s *GRPCClient) Create(ctx context.Context, t models.EntityType, idempotencyKey string, payload []byte) ([]byte, error) {
	req := syncrpc.CreateRequest{EntityType: string(t), IdempotencyKey: idempotencyKey, Entity: payload}
	var resp syncrpc.EntityResponse
	if err := s.call(ctx, true, s.client.Create, req, &resp); err != nil {
		return nil, err
	}
	return resp.Entity, nil
}

func (s *GRPCClient) Update(ctx context.Context, t models.EntityType, serverID int64, payload []byte) ([]byte, error) {
	req := syncrpc.UpdateRequest{EntityType: string(t), ID: serverID, Entity: payload}
	var resp syncrpc.EntityResponse
	if err := s.call(ctx, true, s.client.Update, req, &resp); err != nil {
		return nil, err
	}
	return resp.Entity, nil
}

func (s *GRPCClient) ListSince(ctx context.Context, t models.EntityType, since string, userID int64) ([][]byte, string, error) {
	req := syncrpc.ListSinceRequest{EntityType: string(t), Since: since, UserID: userID}
	var resp syncrpc.ListSinceResponse
	if err := s.call(ctx, true, s.client.ListSince, req, &resp); err != nil {
		return nil, "", err
	}
	out := make([][]byte, 0, len(resp.Entities))
	for _, e := range resp.Entities {
		out = append(out, []byte(e))
	}
	return out, resp.ServerTime, nil
}

type rpc func(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)

func (s *GRPCClient) call(ctx context.Context, idempotent bool, fn rpc, req, resp any) error {
	in, err := syncrpc.Encode(req)
	if err != nil {
		return err
	}

	var out *structpb.Struct
	attempt := func(ctx context.Context) error {
		o, err := fn(ctx, in)
		if err != nil {
			return s.mapError(err)
		}
		out = o
		return nil
	}

	if idempotent && s.maxRetries > 0 {
		err = retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
			err := attempt(ctx)
			if errors.Is(err, ErrUnavailable) {
				return retry.RetryableError(err)
			}
			return err
		})
	} else {
		err = attempt(ctx)
	}
	if err != nil {
		return err
	}
	return syncrpc.Decode(out, resp)
}

func (s *GRPCClient) backoff() retry.Backoff {
	base := s.retryBase
	if base <= 0 {
		base = DefaultRetryBase
	}
	b := retry.NewExponential(base)
	b = retry.WithJitterPercent(20, b)
	return retry.WithMaxRetries(s.maxRetries, b)
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %s", ErrAlreadyExists, st.Message())
	case codes.NotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, st.Message())
	default:
		return &ServerError{Code: st.Code(), Message: st.Message()}
	}
}

var _ Client = (*GRPCClient)(nil)
