package main

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/BaSui01/swarmflow/config"
	"github.com/BaSui01/swarmflow/internal/server"
	"github.com/BaSui01/swarmflow/swarm/scheduler"
	"github.com/BaSui01/swarmflow/swarm/snapshot"
	"github.com/BaSui01/swarmflow/swarm/supervisor"
	"github.com/BaSui01/swarmflow/types"
)

// dbStatsInterval 连接池指标采样间隔
const dbStatsInterval = 15 * time.Second

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func (c *cli) runServe(ctx context.Context, args []string) error {
	fs := c.flagSet("serve")
	configPath := fs.String("config", "", "Path to config file")
	scenario := fs.String("scenario", "", "Path to scenario file")
	watch := fs.Bool("watch", false, "Reload role quotas when the config file changes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := c.setup(*configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := newApp(ctx, cfg, *scenario, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(context.Background()); err != nil {
			logger.Warn("failed to close", zap.Error(err))
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	var last atomic.Pointer[scheduler.Report]
	srv := server.NewManager(a.httpHandler(gctx, &last), server.ConfigFrom(cfg.Server), logger)
	g.Go(func() error { return srv.Run(gctx) })

	g.Go(func() error {
		return a.loop(gctx, cfg.Scheduler.TickInterval, func(rep scheduler.Report) {
			last.Store(&rep)
		})
	})

	if *watch && *configPath != "" {
		watcher, err := config.NewWatcher(
			config.NewLoader().WithConfigPath(*configPath).WithValidator((*config.Config).Validate),
			cfg,
			config.WithWatcherLogger(logger),
		)
		if err != nil {
			return err
		}
		watcher.OnReload(func(_, next *config.Config) { a.reloadQuotas(next) })
		g.Go(func() error { return watcher.Run(gctx) })
	}

	if sb, ok := a.manager.Backend().(*snapshot.SQLBackend); ok && a.collector != nil {
		g.Go(func() error {
			a.recordPoolStats(gctx, sb)
			return nil
		})
	}

	logger.Info("serving",
		zap.String("addr", srv.Addr()),
		zap.Duration("tick_interval", cfg.Scheduler.TickInterval),
		zap.Bool("watch", *watch))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("SwarmFlow stopped")
	return nil
}

// httpHandler 构建运维接口与中间件链
func (a *app) httpHandler(ctx context.Context, last *atomic.Pointer[scheduler.Report]) http.Handler {
	routes := server.Routes{
		Version: Version,
		Checks: []server.HealthCheck{
			server.CheckFunc{CheckName: "snapshot_store", Fn: a.manager.Backend().Ping},
		},
		Status: func(context.Context) (any, error) {
			if rep := last.Load(); rep != nil {
				return rep, nil
			}
			return map[string]string{"state": "waiting for first cycle"}, nil
		},
	}
	if a.registry != nil {
		routes.Metrics = promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
	}

	middlewares := []server.Middleware{
		server.Recovery(a.logger),
		server.RequestID(),
		server.Tracing(nil),
		server.RequestLogger(a.logger),
		server.RateLimiter(ctx, 20, 40),
	}
	if a.collector != nil {
		// Metrics 必须在最内层，才能读到路由模式
		middlewares = append(middlewares, server.Metrics(a.collector))
	}
	return server.Chain(server.NewHandler(routes, a.logger), middlewares...)
}

// loop 按 tick 间隔运行周期，直到 ctx 结束。
// 模式错误终止循环，其他错误记录后在下一个 tick 重试。
func (a *app) loop(ctx context.Context, interval time.Duration, onReport func(scheduler.Report)) error {
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		rep, err := a.step(ctx)
		switch {
		case err == nil:
			onReport(rep)
		case errors.Is(err, scheduler.ErrCycleAborted) && ctx.Err() != nil:
			return nil
		case types.IsFatal(err):
			a.logger.Error("snapshot schema error, stopping", zap.Error(err))
			return err
		default:
			a.logger.Error("cycle failed, retrying next tick", zap.Error(err))
		}
	}
}

// reloadQuotas 用新配置的角色配额替换规划器；无效配额保留旧规划器
func (a *app) reloadQuotas(next *config.Config) {
	planner, err := supervisor.NewPlanner(quotas(next.Scheduler.Quotas), a.logger)
	if err != nil {
		a.logger.Warn("rejected quota reload", zap.Error(err))
		return
	}
	a.driver.SetPlanner(planner)
	a.logger.Info("quotas reloaded", zap.Int("roles", len(next.Scheduler.Quotas)))
}

func (a *app) recordPoolStats(ctx context.Context, sb *snapshot.SQLBackend) {
	ticker := time.NewTicker(dbStatsInterval)
	defer ticker.Stop()
	for {
		stats := sb.Stats()
		a.collector.RecordDBConnections(a.cfg.Database.Driver, stats.OpenConnections, stats.Idle)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
