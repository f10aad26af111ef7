package snapshot

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Manager loads and saves the snapshot under one key.
type Manager struct {
	backend Backend
	key     string
	logger  *zap.Logger
}

// NewManager creates a manager. An empty key selects "swarmflow".
func NewManager(backend Backend, key string, logger *zap.Logger) *Manager {
	if key == "" {
		key = "swarmflow"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		backend: backend,
		key:     key,
		logger:  logger.With(zap.String("component", "snapshot_manager")),
	}
}

// Key returns the snapshot key.
func (m *Manager) Key() string {
	return m.key
}

// Backend returns the underlying backend.
func (m *Manager) Backend() Backend {
	return m.backend
}

// Load reads, migrates and re-validates the snapshot. A missing snapshot
// yields an empty current-version one. When alive is non-nil, entries
// referencing workers it rejects are pruned.
func (m *Manager) Load(ctx context.Context, alive func(workerID string) bool) (*Snapshot, SanitizeReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, SanitizeReport{}, err
	}

	data, err := m.backend.Get(ctx, m.key)
	if errors.Is(err, ErrNotFound) {
		m.logger.Info("no snapshot found, starting fresh", zap.String("key", m.key))
		return New(0), SanitizeReport{}, nil
	}
	if err != nil {
		return nil, SanitizeReport{}, fmt.Errorf("failed to load snapshot %q: %w", m.key, err)
	}

	snap, err := Decode(data)
	if err != nil {
		m.logger.Error("snapshot rejected", zap.String("key", m.key), zap.Error(err))
		return nil, SanitizeReport{}, err
	}

	var rep SanitizeReport
	if alive != nil {
		rep = snap.Sanitize(alive)
		if rep.Total() > 0 {
			m.logger.Warn("snapshot repaired on load",
				zap.Int("dead_workers", rep.DeadWorkers),
				zap.Int("unassigned", rep.Unassigned),
				zap.Int("dangling_assignments", rep.DanglingAssignment),
				zap.Int("dropped_requests", rep.DroppedRequests),
				zap.Int("no_source", rep.NoSource),
			)
		}
	}
	return snap, rep, nil
}

// Save encodes and writes the snapshot. A done context writes nothing.
func (m *Manager) Save(ctx context.Context, s *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(s)
	if err != nil {
		return err
	}
	if err := m.backend.Put(ctx, m.key, data); err != nil {
		return fmt.Errorf("failed to save snapshot %q: %w", m.key, err)
	}
	m.logger.Debug("snapshot saved",
		zap.String("key", m.key),
		zap.Int("cycle", s.Cycle),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Close closes the backend.
func (m *Manager) Close() error {
	return m.backend.Close()
}
