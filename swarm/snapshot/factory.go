package snapshot

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/swarmflow/internal/database"
)

// NewBackend creates a Backend based on the configuration.
func NewBackend(ctx context.Context, config StoreConfig, logger *zap.Logger) (Backend, error) {
	switch config.Type {
	case StoreTypeMemory, "":
		return NewMemoryBackend(), nil
	case StoreTypeFile:
		return NewFileBackend(config.BaseDir)
	case StoreTypeRedis:
		return NewRedisBackend(config.Redis)
	case StoreTypeSQL:
		return newSQLBackend(config.Database, logger)
	case StoreTypeMongo:
		return NewMongoBackend(ctx, config.Mongo)
	default:
		return nil, fmt.Errorf("unsupported snapshot store type: %s", config.Type)
	}
}

func newSQLBackend(config SQLStoreConfig, logger *zap.Logger) (*SQLBackend, error) {
	db, err := database.Open(config.Driver, config.DSN)
	if err != nil {
		return nil, err
	}
	if config.AutoMigrate {
		if err := InitSchema(db); err != nil {
			return nil, err
		}
	}

	pool := database.DefaultPoolConfig()
	if config.MaxOpenConns > 0 {
		pool.MaxOpenConns = config.MaxOpenConns
	}
	if config.MaxIdleConns > 0 {
		pool.MaxIdleConns = config.MaxIdleConns
	}
	if config.ConnMaxLifetime > 0 {
		pool.ConnMaxLifetime = config.ConnMaxLifetime
	}
	pm, err := database.NewPoolManager(db, pool, logger)
	if err != nil {
		return nil, err
	}
	return NewSQLBackend(pm), nil
}
