// 配置文件变更监听器实现。
//
// 轮询配置文件的修改时间，变更后重新加载并通知订阅者。
package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// --- 监听器类型定义 ---

// ReloadCallback is called with the previous and the freshly loaded config.
type ReloadCallback func(oldConfig, newConfig *Config)

// Watcher polls a config file and reloads it when it changes. A reload that
// fails to load or validate keeps the previous config.
type Watcher struct {
	mu sync.RWMutex

	loader   *Loader
	interval time.Duration
	logger   *zap.Logger

	current   *Config
	lastMod   time.Time
	callbacks []ReloadCallback
}

// WatcherOption configures the Watcher
type WatcherOption func(*Watcher)

// WithPollInterval sets how often the file is checked
func WithPollInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.interval = d
	}
}

// WithWatcherLogger sets the logger for the watcher
func WithWatcherLogger(logger *zap.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// --- 监听器实现 ---

// NewWatcher creates a watcher for the loader's config file, seeded with
// current.
func NewWatcher(loader *Loader, current *Config, opts ...WatcherOption) (*Watcher, error) {
	if loader.configPath == "" {
		return nil, fmt.Errorf("watcher needs a config path")
	}
	w := &Watcher{
		loader:   loader,
		interval: time.Second,
		logger:   zap.NewNop(),
		current:  current,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(zap.String("component", "config_watcher"))

	if info, err := os.Stat(loader.configPath); err == nil {
		w.lastMod = info.ModTime()
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat path %s: %w", loader.configPath, err)
	}
	return w, nil
}

// OnReload registers a callback for successful reloads
func (w *Watcher) OnReload(cb ReloadCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// Current returns the config in effect
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("config watcher started",
		zap.String("path", w.loader.configPath),
		zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.Check(); err != nil {
				w.logger.Warn("config reload rejected, keeping previous config", zap.Error(err))
			}
		}
	}
}

// Check reloads the file if its modification time moved forward and
// reports whether a new config took effect.
func (w *Watcher) Check() (bool, error) {
	info, err := os.Stat(w.loader.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件被删除时保持当前配置
			return false, nil
		}
		return false, err
	}

	w.mu.Lock()
	if !info.ModTime().After(w.lastMod) {
		w.mu.Unlock()
		return false, nil
	}
	w.lastMod = info.ModTime()
	w.mu.Unlock()

	next, err := w.loader.Load()
	if err != nil {
		return false, err
	}

	w.mu.Lock()
	prev := w.current
	w.current = next
	callbacks := make([]ReloadCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	w.logger.Info("config reloaded", zap.String("path", w.loader.configPath))
	for _, cb := range callbacks {
		cb(prev, next)
	}
	return true, nil
}
