// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 500, cfg.Scheduler.RequestTTL)
	assert.Equal(t, 9091, cfg.Server.HTTPPort)
}

func TestLoader_LoadFromYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "swarmflow.yaml")

	yamlContent := `
scheduler:
  request_ttl: 300
  max_depth: 3
  cycle_budget: 250ms
  quotas:
    - role: miner
      count: 4
      body: [work, work, move]
      priority: 1
      preferred_facility: spawn-2

store:
  type: redis

redis:
  addr: "redis.example.com:6379"
  password: "secret"
  db: 1

log:
  level: "debug"
  format: "console"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	assert.Equal(t, 300, cfg.Scheduler.RequestTTL)
	assert.Equal(t, 3, cfg.Scheduler.MaxDepth)
	assert.Equal(t, 250*time.Millisecond, cfg.Scheduler.CycleBudget)
	assert.Equal(t, time.Second, cfg.Scheduler.TickInterval, "unset fields keep their defaults")
	require.Len(t, cfg.Scheduler.Quotas, 1, "quotas replace the defaults")
	assert.Equal(t, QuotaConfig{
		Role:              "miner",
		Count:             4,
		Body:              []string{"work", "work", "move"},
		Priority:          1,
		PreferredFacility: "spawn-2",
	}, cfg.Scheduler.Quotas[0])

	assert.Equal(t, "redis", cfg.Store.Type)
	assert.Equal(t, "redis.example.com:6379", cfg.Redis.Addr)
	assert.Equal(t, "secret", cfg.Redis.Password)
	assert.Equal(t, 1, cfg.Redis.DB)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("SWARMFLOW_SCHEDULER_REQUEST_TTL", "42")
	t.Setenv("SWARMFLOW_SCHEDULER_TICK_INTERVAL", "250ms")
	t.Setenv("SWARMFLOW_SERVER_HTTP_PORT", "7777")
	t.Setenv("SWARMFLOW_STORE_TYPE", "sql")
	t.Setenv("SWARMFLOW_DATABASE_AUTO_MIGRATE", "true")
	t.Setenv("SWARMFLOW_TELEMETRY_SAMPLE_RATE", "0.5")
	t.Setenv("SWARMFLOW_LOG_OUTPUT_PATHS", "stdout, /tmp/swarmflow.log")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 42, cfg.Scheduler.RequestTTL)
	assert.Equal(t, 250*time.Millisecond, cfg.Scheduler.TickInterval)
	assert.Equal(t, 7777, cfg.Server.HTTPPort)
	assert.Equal(t, "sql", cfg.Store.Type)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 0.5, cfg.Telemetry.SampleRate)
	assert.Equal(t, []string{"stdout", "/tmp/swarmflow.log"}, cfg.Log.OutputPaths)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "swarmflow.yaml")

	yamlContent := `
scheduler:
  request_ttl: 100
  max_depth: 2
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0644))

	t.Setenv("SWARMFLOW_SCHEDULER_REQUEST_TTL", "900")

	cfg, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	require.NoError(t, err)

	assert.Equal(t, 900, cfg.Scheduler.RequestTTL)
	assert.Equal(t, 2, cfg.Scheduler.MaxDepth)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("MYAPP_SERVER_HTTP_PORT", "6666")

	cfg, err := NewLoader().
		WithEnvPrefix("MYAPP").
		Load()
	require.NoError(t, err)

	assert.Equal(t, 6666, cfg.Server.HTTPPort)
}

func TestLoader_BadEnvValue(t *testing.T) {
	t.Setenv("SWARMFLOW_SCHEDULER_MAX_DEPTH", "deep")

	_, err := NewLoader().Load()
	assert.Error(t, err)
}

func TestLoader_WithValidator(t *testing.T) {
	t.Setenv("SWARMFLOW_SCHEDULER_REQUEST_TTL", "-1")

	_, err := NewLoader().
		WithValidator((*Config).Validate).
		Load()
	assert.Error(t, err)
}

func TestLoader_NonExistentFile(t *testing.T) {
	cfg, err := NewLoader().
		WithConfigPath("/non/existent/path/swarmflow.yaml").
		Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 9091, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
scheduler:
  request_ttl: [invalid
  this is not valid yaml
`
	require.NoError(t, os.WriteFile(configPath, []byte(invalidYAML), 0644))

	_, err := NewLoader().
		WithConfigPath(configPath).
		Load()
	assert.Error(t, err)
}

// --- Config 方法测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid default config", func(c *Config) {}, false},
		{"zero ttl", func(c *Config) { c.Scheduler.RequestTTL = 0 }, true},
		{"zero depth", func(c *Config) { c.Scheduler.MaxDepth = 0 }, true},
		{"negative budget", func(c *Config) { c.Scheduler.CycleBudget = -time.Second }, true},
		{"zero tick interval", func(c *Config) { c.Scheduler.TickInterval = 0 }, true},
		{"quota without role", func(c *Config) {
			c.Scheduler.Quotas = []QuotaConfig{{Count: 1, Body: []string{"move"}}}
		}, true},
		{"duplicate quota", func(c *Config) {
			c.Scheduler.Quotas = append(c.Scheduler.Quotas, c.Scheduler.Quotas[0])
		}, true},
		{"quota without body", func(c *Config) {
			c.Scheduler.Quotas = []QuotaConfig{{Role: "miner", Count: 1}}
		}, true},
		{"zero quota without body", func(c *Config) {
			c.Scheduler.Quotas = []QuotaConfig{{Role: "miner"}}
		}, false},
		{"invalid HTTP port (negative)", func(c *Config) { c.Server.HTTPPort = -1 }, true},
		{"invalid HTTP port (too large)", func(c *Config) { c.Server.HTTPPort = 70000 }, true},
		{"unknown store", func(c *Config) { c.Store.Type = "etcd" }, true},
		{"sql store with unknown driver", func(c *Config) {
			c.Store.Type = "sql"
			c.Database.Driver = "oracle"
		}, true},
		{"sample rate too high", func(c *Config) { c.Telemetry.SampleRate = 1.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name     string
		config   DatabaseConfig
		expected string
	}{
		{
			name: "postgres DSN",
			config: DatabaseConfig{
				Driver:   "postgres",
				Host:     "localhost",
				Port:     5432,
				User:     "user",
				Password: "pass",
				Name:     "dbname",
				SSLMode:  "disable",
			},
			expected: "host=localhost port=5432 user=user password=pass dbname=dbname sslmode=disable",
		},
		{
			name: "mysql DSN",
			config: DatabaseConfig{
				Driver:   "mysql",
				Host:     "localhost",
				Port:     3306,
				User:     "user",
				Password: "pass",
				Name:     "dbname",
			},
			expected: "user:pass@tcp(localhost:3306)/dbname?parseTime=true",
		},
		{
			name:     "sqlite DSN",
			config:   DatabaseConfig{Driver: "sqlite", Name: "/path/to/swarmflow.db"},
			expected: "/path/to/swarmflow.db",
		},
		{
			name:     "unknown driver",
			config:   DatabaseConfig{Driver: "unknown"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.DSN())
		})
	}
}

// --- MustLoad 测试 ---

func TestMustLoad_Success(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "swarmflow.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  http_port: 8080\n"), 0644))

	assert.NotPanics(t, func() {
		cfg := MustLoad(configPath)
		assert.Equal(t, 8080, cfg.Server.HTTPPort)
	})
}

func TestMustLoad_InvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("invalid: [yaml"), 0644))

	assert.Panics(t, func() {
		MustLoad(configPath)
	})
}

func TestLoadFromEnv_Function(t *testing.T) {
	t.Setenv("SWARMFLOW_STORE_TYPE", "memory")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Type)
}
