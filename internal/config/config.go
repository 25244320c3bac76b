// Package config persists daemon settings and the monitored-app list
// as JSON under the user's configuration directory, with atomic writes
// and live reload on file changes.
package config

import (
	"time"

	"github.com/google/uuid"

	"hdrd/internal/domain"
)

// Polling interval bounds in milliseconds. Values outside the range
// are clamped, not rejected, so a hand-edited file cannot brick the
// daemon.
const (
	defaultPollIntervalMs = 1000
	minPollIntervalMs     = 100
	maxPollIntervalMs     = 10000
)

// Config is the persisted daemon configuration.
type Config struct {
	PollIntervalMs int                   `json:"poll_interval_ms"`
	Apps           []domain.MonitoredApp `json:"apps"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{PollIntervalMs: defaultPollIntervalMs}
}

// PollInterval returns the clamped polling interval.
func (c *Config) PollInterval() time.Duration {
	ms := c.PollIntervalMs
	if ms < minPollIntervalMs {
		ms = minPollIntervalMs
	}
	if ms > maxPollIntervalMs {
		ms = maxPollIntervalMs
	}
	return time.Duration(ms) * time.Millisecond
}

// EnabledApps returns only the entries participating in monitoring.
func (c *Config) EnabledApps() []domain.MonitoredApp {
	out := make([]domain.MonitoredApp, 0, len(c.Apps))
	for _, app := range c.Apps {
		if app.Enabled {
			out = append(out, app)
		}
	}
	return out
}

// normalize repairs a loaded configuration in place: unset intervals
// get the default and entries without an ID get one assigned.
func (c *Config) normalize() {
	if c.PollIntervalMs == 0 {
		c.PollIntervalMs = defaultPollIntervalMs
	}
	for i := range c.Apps {
		if c.Apps[i].ID == uuid.Nil {
			c.Apps[i].ID = uuid.New()
		}
	}
}
