package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"kcal/internal/amqp"
	"kcal/internal/ledger"
	"kcal/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend opens the document store and the three documents on it.
// A store that cannot be read fails here; corrupt documents do not.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	docs, closeDocs, err := OpenDocuments(config, f.logger)
	if err != nil {
		return nil, err
	}

	fail := func(err error) (*BackendResult, error) {
		if closeDocs != nil {
			closeDocs()
		}
		return nil, err
	}

	store, report, err := ledger.Open(ctx, docs)
	if err != nil {
		return fail(fmt.Errorf("open ledger: %w", err))
	}
	goals, err := ledger.OpenGoals(ctx, docs)
	if err != nil {
		return fail(fmt.Errorf("open goals: %w", err))
	}
	catalog, err := ledger.OpenCatalog(ctx, docs)
	if err != nil {
		return fail(fmt.Errorf("open saved products: %w", err))
	}

	result := &BackendResult{
		Documents: docs,
		Ledger:    store,
		Goals:     goals,
		Catalog:   catalog,
		Report:    report,
	}

	var amqpClient *amqp.Client
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without sync", "error", err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			result.Publisher = amqpClient
		}
	}

	result.Cleanup = func() error {
		var errs []error
		if amqpClient != nil {
			errs = append(errs, amqpClient.Close())
		}
		if closeDocs != nil {
			errs = append(errs, closeDocs())
		}
		return errors.Join(errs...)
	}

	f.logger.Info("Initialized backend",
		"type", config.Type,
		"days", report.Days,
		"amqp_enabled", result.Publisher != nil)

	return result, nil
}

// OpenDocuments opens only the document store, for processes that read
// the ledger without owning it.
func OpenDocuments(config Config, logger *slog.Logger) (storage.Documents, CleanupFunc, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch config.Type {
	case SQLiteBackend:
		db, err := storage.NewSQLiteStore(config.SQLiteDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		logger.Info("Initialized SQLite store", "db_path", config.SQLiteDBPath)
		return db, db.Close, nil
	case MemoryBackend:
		if config.DataDirectory == "" {
			logger.Info("Initialized in-process memory store")
			return storage.NewMemoryStore(), nil, nil
		}
		store, err := storage.NewFileStore(config.DataDirectory)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize file store: %w", err)
		}
		logger.Info("Initialized memory backend", "data_directory", config.DataDirectory)
		return store, nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}
