package snapshot

import (
	"context"
	"errors"
	"time"
)

// Common errors
var (
	ErrNotFound    = errors.New("snapshot not found")
	ErrStoreClosed = errors.New("store is closed")
)

// Backend stores encoded snapshots under a key.
type Backend interface {
	// Get returns the stored bytes, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put replaces the stored bytes.
	Put(ctx context.Context, key string, data []byte) error

	// Ping checks if the backend is healthy
	Ping(ctx context.Context) error

	// Close releases resources
	Close() error
}

// StoreType represents the type of storage backend
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeFile   StoreType = "file"
	StoreTypeRedis  StoreType = "redis"
	StoreTypeSQL    StoreType = "sql"
	StoreTypeMongo  StoreType = "mongo"
)

// StoreConfig selects and configures a backend.
type StoreConfig struct {
	Type StoreType `json:"type" yaml:"type"`

	// Key is the snapshot key within the backend.
	Key string `json:"key" yaml:"key"`

	// BaseDir is the base directory for file-based storage
	BaseDir string `json:"base_dir" yaml:"base_dir"`

	Redis    RedisStoreConfig `json:"redis" yaml:"redis"`
	Database SQLStoreConfig   `json:"database" yaml:"database"`
	Mongo    MongoStoreConfig `json:"mongo" yaml:"mongo"`
}

// RedisStoreConfig contains Redis-specific configuration
type RedisStoreConfig struct {
	Addr      string `json:"addr" yaml:"addr"`
	Password  string `json:"password" yaml:"password"`
	DB        int    `json:"db" yaml:"db"`
	PoolSize  int    `json:"pool_size" yaml:"pool_size"`
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
	// TLS 启用加固的 TLS 连接
	TLS bool `json:"tls" yaml:"tls"`
}

// SQLStoreConfig selects a gorm dialect.
type SQLStoreConfig struct {
	// Driver is postgres, mysql or sqlite.
	Driver          string        `json:"driver" yaml:"driver"`
	DSN             string        `json:"dsn" yaml:"dsn"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	// AutoMigrate creates the snapshot table on open.
	AutoMigrate bool `json:"auto_migrate" yaml:"auto_migrate"`
}

// MongoStoreConfig contains MongoDB-specific configuration
type MongoStoreConfig struct {
	URI        string        `json:"uri" yaml:"uri"`
	Database   string        `json:"database" yaml:"database"`
	Collection string        `json:"collection" yaml:"collection"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`
	TLS        bool          `json:"tls" yaml:"tls"`
}

// DefaultStoreConfig returns the default store configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:    StoreTypeMemory,
		Key:     "swarmflow",
		BaseDir: "./data/snapshots",
		Redis: RedisStoreConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "swarmflow:",
		},
		Database: SQLStoreConfig{
			Driver:          "sqlite",
			DSN:             "./data/swarmflow.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
			AutoMigrate:     true,
		},
		Mongo: MongoStoreConfig{
			URI:        "mongodb://localhost:27017",
			Database:   "swarmflow",
			Collection: "snapshots",
			Timeout:    10 * time.Second,
		},
	}
}
