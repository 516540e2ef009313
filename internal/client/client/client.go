package client

import (
	"context"

	"github.com/dmitrijs2005/splitsync/internal/client/models"
)

type Client interface {
	Close() error
	Ping(ctx context.Context) error
	// Register creates an account and returns its id.
	Register(ctx context.Context, username, email, password string) (int64, error)
	// Login authenticates subsequent calls and returns the account id.
	Login(ctx context.Context, username, password string) (int64, error)

	Create(ctx context.Context, t models.EntityType, idempotencyKey string, payload []byte) ([]byte, error)
	Update(ctx context.Context, t models.EntityType, serverID int64, payload []byte) ([]byte, error)
	ListSince(ctx context.Context, t models.EntityType, since string, userID int64) ([][]byte, string, error)
}
