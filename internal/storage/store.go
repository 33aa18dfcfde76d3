// Package storage selects and opens the backing store for the process.
package storage

import (
	"context"
	"fmt"

	"github.com/sheikh-saqib/ledger-bank/internal/config"
	interfaces "github.com/sheikh-saqib/ledger-bank/internal/interfaces"
	"github.com/sheikh-saqib/ledger-bank/internal/logger"
	"github.com/sheikh-saqib/ledger-bank/internal/storage/memory"
	"github.com/sheikh-saqib/ledger-bank/internal/storage/postgres"
)

// Store is everything the application persists, behind one handle that is
// opened at startup and closed at shutdown.
type Store interface {
	interfaces.LedgerStore
	interfaces.AccountStore
	interfaces.AuditLog
	Close() error
}

// Open returns the store named by cfg.Store. The postgres store is migrated
// before it is returned.
func Open(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		logger.Info("storage using in-memory store", nil)
		return memory.NewMemoryLedgerStore(), nil

	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		if err := postgres.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("storage connected to postgres", nil)
		return postgres.NewPostgresLedgerStore(db), nil

	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

var (
	_ Store = (*memory.MemoryLedgerStore)(nil)
	_ Store = (*postgres.PostgresLedgerStore)(nil)
)
