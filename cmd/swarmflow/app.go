package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/BaSui01/swarmflow/config"
	"github.com/BaSui01/swarmflow/internal/metrics"
	"github.com/BaSui01/swarmflow/internal/migration"
	"github.com/BaSui01/swarmflow/internal/telemetry"
	"github.com/BaSui01/swarmflow/swarm/scheduler"
	"github.com/BaSui01/swarmflow/swarm/snapshot"
	"github.com/BaSui01/swarmflow/swarm/supervisor"
	"github.com/BaSui01/swarmflow/world"
	"github.com/BaSui01/swarmflow/world/sim"
)

// =============================================================================
// 🧩 组件装配
// =============================================================================

// app 持有一次运行所需的全部组件
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	manager   *snapshot.Manager
	world     *sim.World
	driver    *scheduler.Driver
	registry  *prometheus.Registry
	collector *metrics.Collector
	telemetry *telemetry.Providers
}

func newApp(ctx context.Context, cfg *config.Config, scenario string, logger *zap.Logger) (*app, error) {
	if scenario == "" {
		return nil, fmt.Errorf("--scenario is required: %w", errUsage)
	}
	w, err := sim.LoadScenario(scenario)
	if err != nil {
		return nil, err
	}

	planner, err := supervisor.NewPlanner(quotas(cfg.Scheduler.Quotas), logger)
	if err != nil {
		return nil, fmt.Errorf("invalid quotas: %w", err)
	}

	providers, err := telemetry.Init(ctx, cfg.Telemetry, telemetry.Deployment{
		InstanceID:   uuid.NewString(),
		StoreType:    cfg.Store.Type,
		SnapshotKey:  cfg.Scheduler.SnapshotKey,
		TickInterval: cfg.Scheduler.TickInterval,
		RequestTTL:   cfg.Scheduler.RequestTTL,
	}, logger)
	if err != nil {
		// 遥测不可用不影响调度
		logger.Warn("failed to initialize telemetry", zap.Error(err))
		providers = &telemetry.Providers{}
	}

	manager, err := openStore(ctx, cfg, logger)
	if err != nil {
		_ = providers.Shutdown(ctx)
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		logger:    logger,
		manager:   manager,
		world:     w,
		telemetry: providers,
	}

	opts := []scheduler.Option{
		scheduler.WithPlanner(planner),
		scheduler.WithTTL(cfg.Scheduler.RequestTTL),
		scheduler.WithMaxDepth(cfg.Scheduler.MaxDepth),
		scheduler.WithBudget(cfg.Scheduler.CycleBudget),
		scheduler.WithLogger(logger),
	}
	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.collector = metrics.NewCollectorWithRegistry(cfg.Metrics.Namespace, a.registry, logger)
		opts = append(opts, scheduler.WithRecorder(a.collector))
	}
	a.driver = scheduler.New(manager, w, w, opts...)
	return a, nil
}

// step 运行一个周期，然后让模拟世界前进一个 tick
func (a *app) step(ctx context.Context) (scheduler.Report, error) {
	rep, err := a.driver.RunCycle(ctx)
	if err != nil {
		return rep, err
	}
	a.world.Advance()
	return rep, nil
}

func (a *app) close(ctx context.Context) error {
	return errors.Join(a.manager.Close(), a.telemetry.Shutdown(ctx))
}

// =============================================================================
// 🗄️ 快照存储
// =============================================================================

// openStore 打开配置的快照后端。sql 后端在 auto_migrate 开启时先运行迁移。
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*snapshot.Manager, error) {
	if cfg.Store.Type == string(snapshot.StoreTypeSQL) && cfg.Database.AutoMigrate {
		if err := migrateUp(ctx, cfg, logger); err != nil {
			return nil, err
		}
	}
	backend, err := snapshot.NewBackend(ctx, storeConfig(cfg), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}
	return snapshot.NewManager(backend, cfg.Scheduler.SnapshotKey, logger), nil
}

func migrateUp(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	m, err := migration.NewMigratorFromConfig(cfg, logger)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(ctx); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// storeConfig 将应用配置转换为快照存储配置
func storeConfig(cfg *config.Config) snapshot.StoreConfig {
	sc := snapshot.DefaultStoreConfig()
	sc.Type = snapshot.StoreType(cfg.Store.Type)
	sc.Key = cfg.Scheduler.SnapshotKey
	sc.BaseDir = cfg.Store.BaseDir
	sc.Redis = snapshot.RedisStoreConfig{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		PoolSize:  cfg.Redis.PoolSize,
		KeyPrefix: cfg.Redis.KeyPrefix,
		TLS:       cfg.Redis.TLS,
	}
	sc.Database = snapshot.SQLStoreConfig{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		// 表结构由 golang-migrate 管理
		AutoMigrate: false,
	}
	sc.Mongo = snapshot.MongoStoreConfig{
		URI:        cfg.Mongo.URI,
		Database:   cfg.Mongo.Database,
		Collection: cfg.Mongo.Collection,
		Timeout:    cfg.Mongo.Timeout,
		TLS:        cfg.Mongo.TLS,
	}
	return sc
}

// quotas 将配置中的角色配额转换为 supervisor.Quota
func quotas(qs []config.QuotaConfig) []supervisor.Quota {
	out := make([]supervisor.Quota, 0, len(qs))
	for _, q := range qs {
		body := make([]world.Part, len(q.Body))
		for i, p := range q.Body {
			body[i] = world.Part(p)
		}
		out = append(out, supervisor.Quota{
			Role:              q.Role,
			Count:             q.Count,
			Body:              body,
			Priority:          q.Priority,
			PreferredFacility: q.PreferredFacility,
		})
	}
	return out
}
