package core

import (
	"fmt"
	"os"

	"ogencore/internal/infra/persistence/memory"
	"ogencore/internal/infra/persistence/postgres"
	"ogencore/internal/infra/persistence/sqlite"
)

// Storage driver selection environment variables.
const (
	EnvStorageDriver = "OGENCORE_STORAGE_DRIVER" // memory | sqlite | postgres
	EnvSQLitePath    = "OGENCORE_SQLITE_PATH"
	EnvPostgresDSN   = "OGENCORE_POSTGRES_DSN"
)

// NewInMemoryService creates a service over a fresh in-memory store with the
// given rules engine, plus any service options.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// OpenPersistentStore selects and opens the persistence backend from the
// environment. The default is the embedded sqlite store so that a bare
// deployment survives restarts without extra configuration.
func OpenPersistentStore(engine *RulesEngine) (PersistentStore, error) {
	driver := os.Getenv(EnvStorageDriver)
	switch driver {
	case "", "sqlite":
		return sqlite.NewStore(os.Getenv(EnvSQLitePath), engine)
	case "postgres":
		return postgres.NewStore(os.Getenv(EnvPostgresDSN), engine)
	case "memory":
		return memory.NewStore(engine), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q (expected memory, sqlite, or postgres)", driver)
	}
}
