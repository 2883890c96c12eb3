package cli

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/24f2002329/caniedit/internal/config"
	"github.com/24f2002329/caniedit/internal/database"
	"github.com/24f2002329/caniedit/internal/entitlement"
	"github.com/24f2002329/caniedit/internal/logger"
	"github.com/24f2002329/caniedit/internal/plans"
	"github.com/24f2002329/caniedit/internal/storage"
	"github.com/24f2002329/caniedit/internal/subscriptions"
	"github.com/24f2002329/caniedit/internal/sweeper"
	"github.com/24f2002329/caniedit/internal/tools"
	"github.com/24f2002329/caniedit/internal/usage"
	"github.com/24f2002329/caniedit/internal/users"
)

// app holds the wired services shared by every command.
type app struct {
	cfg *config.Config
	log *zap.Logger
	db  *database.DB
	rdb *redis.Client

	catalog  *plans.Catalog
	registry *tools.Registry
	ledger   *usage.Ledger
	resolver *subscriptions.Resolver
	users    *users.Service
	gate     *entitlement.Gate
	store    *storage.Store
	records  *storage.Records
}

func wireApp(ctx context.Context) (*app, error) {
	// 1. --- Configuration & logging ---
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	// 2. --- Database ---
	db, err := database.Open(cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	// 3. --- Optional plan cache ---
	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb, err = database.NewRedis(ctx, cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, plan cache disabled", zap.String("address", cfg.Redis.Address), zap.Error(err))
			rdb = nil
		}
	}

	// 4. --- Artifact storage ---
	store, err := storage.NewStore(cfg.Storage.OutputDir)
	if err != nil {
		db.Close()
		return nil, err
	}

	a := &app{cfg: cfg, log: log, db: db, rdb: rdb, store: store}
	a.catalog = plans.NewCatalog(db)
	a.registry = tools.NewRegistry(db)
	a.ledger = usage.NewLedger(db, cfg.Usage.Window())
	a.resolver = subscriptions.NewResolver(db, subscriptions.NewPlanCache(rdb, cfg.Redis.PlanTTL), log)
	a.users = users.NewService(db, a.resolver, log)
	a.gate = entitlement.NewGate(a.registry, a.resolver, a.ledger, cfg.Usage.AnonDailyLimit, log)
	a.records = storage.NewRecords(db)
	return a, nil
}

// seed makes the plan and tool catalogs match the deployed definitions.
func (a *app) seed(ctx context.Context) error {
	if err := a.catalog.Seed(ctx, plans.Definitions(a.cfg.Plans)); err != nil {
		return fmt.Errorf("seed plans: %w", err)
	}
	if err := a.registry.Seed(ctx, tools.Definitions()); err != nil {
		return fmt.Errorf("seed tools: %w", err)
	}
	return nil
}

func (a *app) supervisor() *sweeper.Supervisor {
	return sweeper.New(a.log,
		sweeper.UsageRetention(a.ledger, a.cfg.Usage.RetentionDays, a.cfg.Usage.SweepInterval),
		sweeper.AccountDeletion(a.users, a.cfg.Usage.SweepInterval),
		sweeper.ArtifactJanitor(storage.NewJanitor(a.store, a.records), a.cfg.Storage.MaxFileAge, a.cfg.Storage.JanitorEvery),
	)
}

func (a *app) Close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Warn("Failed to close redis", zap.Error(err))
		}
	}
	if err := a.db.Close(); err != nil {
		a.log.Warn("Failed to close database", zap.Error(err))
	}
	_ = a.log.Sync()
}
