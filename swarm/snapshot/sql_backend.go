package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BaSui01/swarmflow/internal/database"
)

// SnapshotRecord is the SQL row holding one encoded snapshot.
type SnapshotRecord struct {
	Key       string    `gorm:"column:snapshot_key;primaryKey;size:191"`
	Data      []byte    `gorm:"column:data;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName implements gorm's tabler.
func (SnapshotRecord) TableName() string {
	return "swarmflow_snapshots"
}

// InitSchema creates or updates the snapshot table.
func InitSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(&SnapshotRecord{}); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}
	return nil
}

// putRetries bounds transaction retries on deadlocks and lost connections.
const putRetries = 3

// SQLBackend stores snapshots in a relational database through gorm.
type SQLBackend struct {
	pool *database.PoolManager
}

// NewSQLBackend creates a backend on top of a pool.
func NewSQLBackend(pool *database.PoolManager) *SQLBackend {
	return &SQLBackend{pool: pool}
}

// Get implements Backend.
func (b *SQLBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var rec SnapshotRecord
	err := b.pool.DB().WithContext(ctx).Where("snapshot_key = ?", key).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return rec.Data, nil
}

// Put implements Backend.
func (b *SQLBackend) Put(ctx context.Context, key string, data []byte) error {
	rec := SnapshotRecord{Key: key, Data: data, UpdatedAt: time.Now().UTC()}
	return b.pool.WithTransactionRetry(ctx, putRetries, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "snapshot_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).Create(&rec).Error
	})
}

// Ping implements Backend.
func (b *SQLBackend) Ping(ctx context.Context) error {
	return b.pool.Ping(ctx)
}

// Stats returns connection pool statistics.
func (b *SQLBackend) Stats() sql.DBStats {
	return b.pool.Stats()
}

// Close implements Backend.
func (b *SQLBackend) Close() error {
	return b.pool.Close()
}
