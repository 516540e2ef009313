package accounts

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/splitsync/internal/common"
	"github.com/dmitrijs2005/splitsync/internal/server/models"
)

// MemoryRepository keeps accounts in a map. It backs servers started without
// a database DSN and the server tests.
type MemoryRepository struct {
	mu         sync.RWMutex
	byUsername map[string]models.Account
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byUsername: map[string]models.Account{}}
}

func (r *MemoryRepository) Create(ctx context.Context, a *models.Account) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUsername[a.Username]; ok {
		return nil, common.ErrorAlreadyExists
	}
	a.CreatedAt = time.Now().UTC()
	r.byUsername[a.Username] = *a
	return a, nil
}

func (r *MemoryRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byUsername[username]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &a, nil
}
