package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/splitsync/internal/client/client"
	"github.com/dmitrijs2005/splitsync/internal/client/models"
)

var (
	ErrSyncInProgress = errors.New("sync already in progress")
	ErrNoUser         = errors.New("no authenticated user")
	ErrOffline        = errors.New("server is not reachable")
)

// Env is the per-pass context that would otherwise come from globals.
type Env struct {
	// UserID is the server id of the signed-in account; pulls are scoped to it.
	UserID int64
	// DeviceID prefixes idempotency keys of creates sent from this device.
	DeviceID string
}

// IdempotencyKey identifies the create of one local entity across retries.
func IdempotencyKey(deviceID string, localID int64) string {
	return fmt.Sprintf("%s:%d", deviceID, localID)
}

// Remote is the server API the managers talk to. Payloads are JSON objects
// whose foreign keys hold server ids.
type Remote interface {
	Create(ctx context.Context, t models.EntityType, idempotencyKey string, payload []byte) ([]byte, error)
	Update(ctx context.Context, t models.EntityType, serverID int64, payload []byte) ([]byte, error)
	ListSince(ctx context.Context, t models.EntityType, since string, userID int64) ([][]byte, string, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// IDSource hands out local ids.
type IDSource interface {
	Next(ctx context.Context) (int64, error)
}

// IsNetworkError reports whether err means the server cannot be talked to
// right now, which makes the rest of a pass pointless.
func IsNetworkError(err error) bool {
	return errors.Is(err, client.ErrUnavailable) ||
		errors.Is(err, client.ErrUnauthorized) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}
