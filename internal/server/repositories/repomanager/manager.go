// Package repomanager vends repository implementations bound to a DBTX and
// owns schema migrations for the selected backend.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/jobtrack/internal/dbx"
	"github.com/dmitrijs2005/jobtrack/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	// TxRunner runs multi-step user updates in one transaction on db.
	TxRunner(db *sql.DB) users.TxRunner
}

// MemoryRepositoryManager serves a single in-process users store regardless
// of the DBTX passed in. Migrations are a no-op.
type MemoryRepositoryManager struct {
	users *users.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{users: users.NewMemoryRepository()}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error { return nil }

func (m *MemoryRepositoryManager) Users(dbx.DBTX) users.Repository { return m.users }

func (m *MemoryRepositoryManager) TxRunner(*sql.DB) users.TxRunner {
	return users.NewDirectRunner(m.users)
}
