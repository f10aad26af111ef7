// =============================================================================
// SwarmFlow 主入口
// =============================================================================
// 调度器命令行，包含单次运行、常驻服务、快照查看与数据库迁移
//
// 使用方法:
//
//	swarmflow run --scenario world.yaml --cycles 10   # 运行 N 个周期
//	swarmflow serve --scenario world.yaml             # 按节拍常驻运行
//	swarmflow inspect                                 # 打印当前快照
//	swarmflow migrate up                              # 运行数据库迁移
//	swarmflow version                                 # 显示版本信息
// =============================================================================

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/swarmflow/config"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{stdout: os.Stdout, stderr: os.Stderr, newLogger: initLogger}
	os.Exit(c.run(ctx, os.Args[1:]))
}

// errUsage 表示参数错误，已经打印过帮助
var errUsage = errors.New("usage error")

// cli 持有输出与日志工厂，便于测试替换
type cli struct {
	stdout    io.Writer
	stderr    io.Writer
	newLogger func(config.LogConfig) (*zap.Logger, error)
}

func (c *cli) run(ctx context.Context, args []string) int {
	if len(args) < 1 {
		c.printUsage(c.stderr)
		return 2
	}

	var err error
	switch args[0] {
	case "run":
		err = c.runCycles(ctx, args[1:])
	case "serve":
		err = c.runServe(ctx, args[1:])
	case "inspect":
		err = c.runInspect(ctx, args[1:])
	case "migrate":
		err = c.runMigrate(ctx, args[1:])
	case "version":
		c.printVersion()
	case "help", "-h", "--help":
		c.printUsage(c.stdout)
	default:
		fmt.Fprintf(c.stderr, "Unknown command: %s\n", args[0])
		c.printUsage(c.stderr)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case err == errUsage, errors.Is(err, flag.ErrHelp):
		// 帮助已经打印过
		return 2
	case errors.Is(err, errUsage):
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 2
	default:
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func (c *cli) printVersion() {
	fmt.Fprintf(c.stdout, "SwarmFlow %s\n", Version)
	fmt.Fprintf(c.stdout, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(c.stdout, "  Git Commit: %s\n", GitCommit)
}

func (c *cli) printUsage(w io.Writer) {
	fmt.Fprint(w, `SwarmFlow - tick-based worker scheduler

Usage:
  swarmflow <command> [options]

Commands:
  run       Run scheduling cycles against a scenario
  serve     Run cycles on a fixed tick with /health and /metrics
  inspect   Print the stored snapshot
  migrate   Database migration commands
  version   Show version information
  help      Show this help message

Common options:
  --config <path>     Path to configuration file (YAML)

Options for 'run':
  --scenario <path>   Scenario file describing the world (required)
  --cycles <n>        Number of cycles to run (default 1)

Options for 'serve':
  --scenario <path>   Scenario file describing the world (required)
  --watch             Reload role quotas when the config file changes

Examples:
  swarmflow run --scenario world.yaml --cycles 20
  swarmflow serve --config /etc/swarmflow/config.yaml --scenario world.yaml --watch
  swarmflow inspect --config swarmflow.yaml
  swarmflow migrate up
  swarmflow migrate status
`)
}

// =============================================================================
// 🔧 配置与日志
// =============================================================================

// loadConfig 加载并验证配置
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	// 解析日志级别
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       encoding == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
