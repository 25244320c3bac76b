package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"hdrd/internal/domain"
)

// reloadSettle coalesces the burst of file events an editor or atomic
// rename produces into one reload.
const reloadSettle = 200 * time.Millisecond

// DefaultPath returns the per-user configuration file location
// (%APPDATA%\hdrd\config.json on Windows).
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(dir, "hdrd", "config.json"), nil
}

// Manager owns the configuration file: loading, mutation, atomic
// persistence and change notification.
type Manager struct {
	path   string
	logger *zap.Logger

	mu  sync.Mutex
	cfg *Config
}

// NewManager creates a manager for the given file path and loads the
// current configuration. A missing file yields defaults and is created
// on the first save.
func NewManager(path string, logger *zap.Logger) *Manager {
	m := &Manager{path: path, logger: logger}
	m.cfg = m.load()
	return m
}

// Current returns the loaded configuration. Callers must treat it as
// read-only; mutations go through the Manager.
func (m *Manager) Current() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// load reads and repairs the configuration file. Any failure falls
// back to defaults so the daemon always starts.
func (m *Manager) load() *Config {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("config file unreadable, using defaults",
				zap.String("path", m.path), zap.Error(err))
		}
		return Default()
	}
	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		m.logger.Warn("config file corrupt, using defaults",
			zap.String("path", m.path), zap.Error(err))
		return Default()
	}
	cfg.normalize()
	return cfg
}

// Save persists the given configuration atomically: the JSON is
// written to a temporary file in the same directory, then renamed over
// the target, so a crash mid-write never leaves a torn file.
func (m *Manager) Save(cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(m.path), ".config-*.json")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp config: %w", err)
	}
	if err := os.Rename(tmpName, m.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace config: %w", err)
	}

	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
	return nil
}

// AddApp appends a new monitored-app entry, assigning it an ID, and
// persists the result.
func (m *Manager) AddApp(app domain.MonitoredApp) (domain.MonitoredApp, error) {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	cfg := m.cloneCurrent()
	cfg.Apps = append(cfg.Apps, app)
	if err := m.Save(cfg); err != nil {
		return domain.MonitoredApp{}, err
	}
	return app, nil
}

// RemoveApp deletes the entry with the given ID and persists the
// result. Removing an unknown ID is an error.
func (m *Manager) RemoveApp(id uuid.UUID) error {
	cfg := m.cloneCurrent()
	for i, app := range cfg.Apps {
		if app.ID == id {
			cfg.Apps = append(cfg.Apps[:i], cfg.Apps[i+1:]...)
			return m.Save(cfg)
		}
	}
	return fmt.Errorf("no monitored app with id %s", id)
}

// SetAppEnabled toggles one entry's participation in monitoring.
func (m *Manager) SetAppEnabled(id uuid.UUID, enabled bool) error {
	cfg := m.cloneCurrent()
	for i := range cfg.Apps {
		if cfg.Apps[i].ID == id {
			cfg.Apps[i].Enabled = enabled
			return m.Save(cfg)
		}
	}
	return fmt.Errorf("no monitored app with id %s", id)
}

func (m *Manager) cloneCurrent() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := &Config{
		PollIntervalMs: m.cfg.PollIntervalMs,
		Apps:           make([]domain.MonitoredApp, len(m.cfg.Apps)),
	}
	copy(clone.Apps, m.cfg.Apps)
	return clone
}

// Watch reloads the configuration whenever the file changes on disk
// and invokes onChange with the new value. It watches the parent
// directory so atomic renames and editors recreating the file are
// both caught. Blocks until the context is canceled.
func (m *Manager) Watch(ctx context.Context, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}
	m.logger.Info("watching configuration", zap.String("path", m.path))

	var settle *time.Timer
	var settleC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(m.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if settle == nil {
				settle = time.NewTimer(reloadSettle)
				settleC = settle.C
			} else {
				settle.Reset(reloadSettle)
			}

		case <-settleC:
			cfg := m.load()
			m.mu.Lock()
			m.cfg = cfg
			m.mu.Unlock()
			m.logger.Info("configuration reloaded",
				zap.Int("apps", len(cfg.Apps)),
				zap.Duration("pollInterval", cfg.PollInterval()))
			onChange(cfg)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}
