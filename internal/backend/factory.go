package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tabs/internal/amqp"
	"tabs/internal/recent"
	"tabs/internal/services"
	"tabs/internal/storage"
	"tabs/internal/storage/postgres"
	"tabs/internal/store"
	"tabs/internal/store/memory"
)

// maxRecentViewers bounds the in-process recent-counterparty table.
const maxRecentViewers = 5000

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend opens the ledger store selected by config, attaches the
// optional event publisher and picks the recent-counterparty tracker.
// AMQP and Redis are optional: a failure to reach either is logged and
// the backend falls back to running without events or with an in-process
// tracker.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	ledger, err := f.openLedger(ctx, config)
	if err != nil {
		return nil, err
	}

	var publisher services.EventPublisher
	if client := f.connectAMQP(config); client != nil {
		publisher = client
	}

	svc := services.NewLedgerService(ledger, publisher, services.Options{
		Currency:    config.Currency,
		Location:    config.Location,
		SearchLimit: config.SearchLimit,
	})

	res := &Result{Service: svc, Cleanup: svc.Close}
	tracker, closer := f.recentTracker(ctx, config)
	res.Recent = tracker
	if closer != nil {
		res.Cleanup = func() error {
			return errors.Join(svc.Close(), closer())
		}
	}
	if m, ok := tracker.(*recent.Memory); ok {
		res.Caches = append(res.Caches, m.Cache())
	}

	f.logger.Info("Initialized backend",
		"backend", config.Type,
		"amqp_enabled", publisher != nil,
		"recent", fmt.Sprintf("%T", tracker))
	return res, nil
}

func (f *DefaultFactory) openLedger(ctx context.Context, config Config) (store.Ledger, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Opened SQLite ledger", "db_path", config.SQLiteDBPath)
		return repo, nil
	case PostgresBackend:
		repo, err := postgres.Open(ctx, config.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		f.logger.Info("Opened Postgres ledger")
		return repo, nil
	case MemoryBackend:
		dataDir := config.DataDirectory
		if dataDir == "" {
			dataDir = "data"
		}
		f.logger.Info("Opened memory ledger", "data_directory", dataDir)
		return memory.NewFromFiles(dataDir), nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// connectAMQP returns nil when events are disabled or the broker cannot be
// reached.
func (f *DefaultFactory) connectAMQP(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}

func (f *DefaultFactory) recentTracker(ctx context.Context, config Config) (recent.Tracker, CleanupFunc) {
	if config.RedisAddr != "" {
		r, err := recent.NewRedis(ctx, config.RedisAddr, config.RecentTTL)
		if err == nil {
			return r, r.Close
		}
		f.logger.Warn("Failed to connect to Redis, keeping recent counterparties in memory",
			"addr", config.RedisAddr, "error", err)
	}
	return recent.NewMemory(maxRecentViewers, config.RecentTTL), nil
}
