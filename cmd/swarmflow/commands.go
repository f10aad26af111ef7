package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/swarmflow/config"
	"github.com/BaSui01/swarmflow/internal/migration"
	"github.com/BaSui01/swarmflow/swarm/scheduler"
	"github.com/BaSui01/swarmflow/swarm/snapshot"
)

// =============================================================================
// ▶️ run 命令
// =============================================================================

func (c *cli) runCycles(ctx context.Context, args []string) error {
	fs := c.flagSet("run")
	configPath := fs.String("config", "", "Path to config file")
	scenario := fs.String("scenario", "", "Path to scenario file")
	cycles := fs.Int("cycles", 1, "Number of cycles to run")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *cycles < 1 {
		return fmt.Errorf("--cycles must be positive: %w", errUsage)
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

	for i := 0; i < *cycles; i++ {
		rep, err := a.step(ctx)
		if err != nil {
			return err
		}
		c.printReport(rep)
	}
	return nil
}

func (c *cli) printReport(rep scheduler.Report) {
	t := rep.Total()
	fmt.Fprintf(c.stdout,
		"cycle %d: regions=%d created=%d claimed=%d gone=%d done=%d failed=%d spawned=%d purged=%d open=%d\n",
		rep.Cycle, len(rep.Regions),
		t.Objectives.Created, t.Objectives.Claimed, t.Objectives.Gone,
		t.Tasks.Done, t.Tasks.Failed, t.Spawn.Created, t.Purged, t.Open,
	)
}

// =============================================================================
// 🔍 inspect 命令
// =============================================================================

func (c *cli) runInspect(ctx context.Context, args []string) error {
	fs := c.flagSet("inspect")
	configPath := fs.String("config", "", "Path to config file")
	raw := fs.Bool("raw", false, "Print the stored bytes without upgrading them")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, logger, err := c.setup(*configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	manager, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer manager.Close()

	var data []byte
	if *raw {
		data, err = manager.Backend().Get(ctx, manager.Key())
		if errors.Is(err, snapshot.ErrNotFound) {
			return fmt.Errorf("no snapshot stored under %q", manager.Key())
		}
	} else {
		// 不传 alive：inspect 只读，不裁剪任何条目
		var snap *snapshot.Snapshot
		snap, _, err = manager.Load(ctx, nil)
		if err == nil {
			data, err = snapshot.Encode(snap)
		}
	}
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return fmt.Errorf("snapshot is not valid JSON: %w", err)
	}
	out.WriteByte('\n')
	_, err = out.WriteTo(c.stdout)
	return err
}

// =============================================================================
// 🗃️ migrate 命令
// =============================================================================

func (c *cli) runMigrate(ctx context.Context, args []string) error {
	fs := c.flagSet("migrate")
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type: postgres, mysql, sqlite (default: from config)")
	dbURL := fs.String("db-url", "", "Database connection URL (default: from config)")
	fs.Usage = func() {
		fmt.Fprintf(c.stderr, "Usage: swarmflow migrate [--config path] [--db-type t --db-url u] <command>\n\n%s\n", migration.Usage)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 || fs.Arg(0) == "help" {
		fs.Usage()
		if fs.NArg() == 0 {
			return errUsage
		}
		return nil
	}

	cfg, logger, err := c.setup(*configPath)
	if err != nil {
		return err
	}
	defer logger.Sync()

	var m *migration.DefaultMigrator
	if *dbURL != "" {
		t := *dbType
		if t == "" {
			t = cfg.Database.Driver
		}
		m, err = migration.NewMigratorFromURL(t, *dbURL, logger)
	} else {
		m, err = migration.NewMigratorFromConfig(cfg, logger)
	}
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	cmd := migration.NewCLI(m)
	cmd.SetOutput(c.stdout)
	return cmd.Run(ctx, fs.Args())
}

// =============================================================================
// 🔧 公共辅助
// =============================================================================

func (c *cli) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

// setup 加载配置并构建 logger
func (c *cli) setup(configPath string) (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := c.newLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("starting SwarmFlow",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)
	return cfg, logger, nil
}
