package backend

import (
	"context"
	"time"

	"tabs/internal/cache"
	"tabs/internal/recent"
	"tabs/internal/services"
)

// CleanupFunc releases the resources a backend holds.
type CleanupFunc func() error

// Result bundles what the server needs from a backend.
type Result struct {
	Service *services.LedgerService
	Recent  recent.Tracker
	// Caches lists in-process caches that should be swept periodically.
	Caches  []cache.Cleaner
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	PostgresURL string

	// Memory backend seed directory
	DataDirectory string

	// Optional event publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Recent counterparties; Redis when RedisAddr is set
	RedisAddr string
	RecentTTL time.Duration

	Currency    string
	Location    *time.Location
	SearchLimit int
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
