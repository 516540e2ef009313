package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/dmitrijs2005/splitsync/internal/logging"
	"github.com/dmitrijs2005/splitsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/splitsync/internal/server/services"
	"github.com/dmitrijs2005/splitsync/internal/syncrpc"
)

var secret = []byte("secret")

// serveBufconn serves an in-memory backed server over bufconn.
func serveBufconn(t *testing.T) (*bufconn.Listener, *Metrics) {
	t.Helper()

	m := repomanager.NewInMemoryRepositoryManager()
	metrics := NewMetrics(prometheus.NewRegistry())
	as := services.NewAccountService(m, secret, time.Hour)
	as.SetBcryptCost(bcrypt.MinCost)
	s := NewGRPCServer("", logging.Nop(), as, services.NewRecordService(m), secret, metrics)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return lis, metrics
}

func bufDialer(lis *bufconn.Listener) grpc.DialOption {
	return grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) })
}

// startServer returns a raw SyncService client of a fresh server plus the
// metrics it records.
func startServer(t *testing.T) (syncrpc.SyncServiceClient, *Metrics) {
	t.Helper()
	lis, metrics := serveBufconn(t)

	conn, err := grpc.NewClient("passthrough:///bufnet", bufDialer(lis), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return syncrpc.NewSyncServiceClient(conn), metrics
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:0", logging.Nop(), nil, nil, secret, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", logging.Nop(), nil, nil, secret, nil)
	require.Error(t, srv.Run(context.Background()))
}

func TestMetrics_CountRequestsByCode(t *testing.T) {
	c, metrics := startServer(t)
	ctx := context.Background()

	in, _ := syncrpc.Encode(struct{}{})
	_, err := c.Ping(ctx, in)
	require.NoError(t, err)
	_, err = c.ListSince(ctx, in)
	require.Error(t, err)

	require.InDelta(t, 1, testutil.ToFloat64(metrics.requests.WithLabelValues("Ping", "OK")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(metrics.requests.WithLabelValues("ListSince", "Unauthenticated")), 0)
}
