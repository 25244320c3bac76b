// Package watchlist holds the shared, atomically swappable watch-list
// snapshot read by the process monitor and the coordination controller.
package watchlist

import (
	"sync"

	"hdrd/internal/domain"
)

// Registry is the single mutable handover point between configuration
// changes and the monitoring loops. The snapshot is always replaced as
// a whole unit, never field by field, so the app list and identifier
// set a reader sees are derived from the same configuration version.
type Registry struct {
	mu    sync.RWMutex
	state *domain.WatchState
}

// NewRegistry creates a registry with an empty watch list.
func NewRegistry() *Registry {
	return &Registry{state: domain.NewWatchState(nil)}
}

// Update replaces the watch state with a snapshot derived from the
// given entries. Callers pass only currently-enabled entries.
func (r *Registry) Update(apps []domain.MonitoredApp) {
	state := domain.NewWatchState(apps)
	r.mu.Lock()
	r.state = state
	r.mu.Unlock()
}

// Current returns the latest immutable snapshot.
func (r *Registry) Current() *domain.WatchState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

var _ domain.WatchReader = (*Registry)(nil)
