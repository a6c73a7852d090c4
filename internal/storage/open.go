package storage

import (
	"context"
	"fmt"
)

// Supported backends
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and configures a storage backend
type Options struct {
	Driver      string // DriverSQLite or DriverPostgres
	SQLitePath  string
	PostgresDSN string
	Pool        PoolConfig
	Retry       RetryConfig
}

// Open returns the Storage named by opts.Driver with migrations applied
func Open(ctx context.Context, opts Options) (Storage, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		path := opts.SQLitePath
		if path == "" {
			path = ":memory:"
		}
		return retryWithBackoff(ctx, opts.Retry, func() (Storage, error) {
			return NewSQLiteStorage(path)
		})
	case DriverPostgres:
		if opts.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres driver requires a connection string")
		}
		return NewPostgresStorage(ctx, opts.PostgresDSN, opts.Pool, opts.Retry)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", opts.Driver)
	}
}

// Rollback reverts the most recently applied schema migration of store
func Rollback(ctx context.Context, store Storage) error {
	switch s := store.(type) {
	case *SQLiteStorage:
		return RollbackMigration(ctx, s.db)
	case *PostgresStorage:
		return RollbackPostgresMigration(ctx, s.pool)
	default:
		return fmt.Errorf("rollback not supported for %T", store)
	}
}
