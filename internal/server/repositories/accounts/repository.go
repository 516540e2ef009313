// Package accounts stores the registered accounts of the sync server.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/splitsync/internal/server/models"
)

type Repository interface {
	// Create stores a. A taken username yields common.ErrorAlreadyExists.
	Create(ctx context.Context, a *models.Account) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
}
