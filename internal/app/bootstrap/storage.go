package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/viralforge/donor-ledger/internal/adapters/memory"
	mongoadapter "github.com/viralforge/donor-ledger/internal/adapters/mongo"
	"github.com/viralforge/donor-ledger/internal/adapters/postgres"
	"github.com/viralforge/donor-ledger/internal/ports"
)

// storage is the repository set for the configured driver plus the hooks
// the runtime needs for readiness and shutdown.
type storage struct {
	campaigns   ports.CampaignRepository
	donors      ports.DonorRepository
	outbox      ports.OutboxRepository
	idempotency ports.IdempotencyRepository
	transactor  ports.Transactor
	cache       ports.Cache
	ping        func(ctx context.Context) error
	close       func(ctx context.Context)
}

// openStorage connects to the configured store and brings its schema up to
// date before any repository is handed out.
func openStorage(ctx context.Context, cfg Config, logger *slog.Logger) (storage, error) {
	switch cfg.StorageDriver {
	case StorageMongo:
		client, db, err := mongoadapter.Connect(ctx, mongoadapter.ConnectConfig{
			URI:         cfg.MongoURI,
			Database:    cfg.MongoDatabase,
			MaxPoolSize: cfg.MongoMaxPoolSize,
		})
		if err != nil {
			return storage{}, fmt.Errorf("connect mongo: %w", err)
		}
		if err := mongoadapter.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return storage{}, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		if !cfg.MongoTransactions {
			logger.Warn("mongo transactions disabled; reconcile worker repairs partial writes")
		}
		repos := mongoadapter.NewRepositories(client, db, cfg.MongoTransactions)
		return storage{
			campaigns:   repos.Campaigns,
			donors:      repos.Donors,
			outbox:      repos.Outbox,
			idempotency: repos.Idempotency,
			transactor:  repos.Transactor,
			ping: func(ctx context.Context) error {
				return client.Ping(ctx, readpref.Primary())
			},
			close: func(ctx context.Context) { _ = client.Disconnect(ctx) },
		}, nil

	case StoragePostgres:
		db, err := postgres.Connect(ctx, cfg.DatabaseURL, postgres.PoolConfig{MaxConns: cfg.MaxDBConns})
		if err != nil {
			return storage{}, fmt.Errorf("connect postgres: %w", err)
		}
		if err := postgres.RunMigrations(ctx, db); err != nil {
			_ = postgres.Close(db)
			return storage{}, fmt.Errorf("run migrations: %w", err)
		}
		repos := postgres.NewRepositories(db)
		return storage{
			campaigns:   repos.Campaigns,
			donors:      repos.Donors,
			outbox:      repos.Outbox,
			idempotency: repos.Idempotency,
			transactor:  repos.Transactor,
			ping:        func(ctx context.Context) error { return postgres.Ping(ctx, db) },
			close:       func(context.Context) { _ = postgres.Close(db) },
		}, nil

	case StorageMemory:
		logger.Warn("using in-memory storage; data is lost on restart")
		repos := memory.NewRepositories()
		return storage{
			campaigns:   repos.Campaigns,
			donors:      repos.Donors,
			outbox:      repos.Outbox,
			idempotency: repos.Idempotency,
			transactor:  repos.Transactor,
			cache:       repos.Cache,
			ping:        func(context.Context) error { return nil },
			close:       func(context.Context) {},
		}, nil
	}
	return storage{}, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
}

// Migrate applies schema migrations or index definitions for the configured
// store and exits.
func Migrate(ctx context.Context, configPath string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	store, err := openStorage(ctx, cfg, newLogger(cfg))
	if err != nil {
		return err
	}
	store.close(ctx)
	return nil
}
