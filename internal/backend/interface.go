package backend

import (
	"context"

	"kcal/internal/ledger"
	"kcal/internal/services"
	"kcal/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the opened stores and what must be released on exit.
type BackendResult struct {
	Documents storage.Documents
	Ledger    *ledger.Store
	Goals     *ledger.GoalsStore
	Catalog   *ledger.Catalog
	Report    ledger.LoadReport

	// Publisher is nil when AMQP is not configured.
	Publisher services.Publisher
	Cleanup   CleanupFunc
}

// Ping checks the underlying store when it supports it.
func (r *BackendResult) Ping(ctx context.Context) error {
	if p, ok := r.Documents.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory backend specific; empty keeps documents in process only.
	DataDirectory string

	// Optional day-sync publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
