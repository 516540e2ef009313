package repomanager

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/splitsync/internal/dbx"
	"github.com/dmitrijs2005/splitsync/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/splitsync/internal/server/repositories/records"
)

// InMemoryRepositoryManager keeps everything in process memory. Its DBTX
// handles are nil and ignored. WithTx serializes callers but does not roll
// back on error.
type InMemoryRepositoryManager struct {
	txMu     sync.Mutex
	accounts *accounts.MemoryRepository
	records  *records.MemoryRepository
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{
		accounts: accounts.NewMemoryRepository(),
		records:  records.NewMemoryRepository(),
	}
}

func (m *InMemoryRepositoryManager) RunMigrations(ctx context.Context) error { return nil }

func (m *InMemoryRepositoryManager) Conn() dbx.DBTX { return nil }

func (m *InMemoryRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(ctx, nil)
}

func (m *InMemoryRepositoryManager) Accounts(dbx.DBTX) accounts.Repository { return m.accounts }

func (m *InMemoryRepositoryManager) Records(dbx.DBTX) records.Repository { return m.records }

func (m *InMemoryRepositoryManager) Close() error { return nil }
