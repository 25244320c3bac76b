package domain

// ProcessLister takes a full snapshot of running processes.
// Implementation: uses gopsutil; a single process that disappears
// mid-snapshot is skipped, not an error.
type ProcessLister interface {
	// Snapshot returns every currently running process. The capacity
	// hint lets the caller right-size the result storage from its
	// moving average of past snapshot sizes. An error means the
	// snapshot itself could not be taken; the caller retries on the
	// next poll tick.
	Snapshot(capacityHint int) ([]ProcessInfo, error)
}

// IdentityResolver maps a process to its stable application identity.
type IdentityResolver interface {
	// Resolve returns the identity for a process, consulting a
	// short-TTL cache first. It never fails: any package query error
	// falls back to the Win32 executable stem.
	Resolve(pid int32, exeName string) AppIdentifier

	// Cached returns the unexpired cached identity for a PID, if any,
	// refreshing its timestamp on hit.
	Cached(pid int32) (AppIdentifier, bool)
}

// WatchReader provides the current watch-list snapshot. The snapshot
// is immutable; callers must not modify it.
type WatchReader interface {
	Current() *WatchState
}

// DisplayController manages HDR state across all displays.
type DisplayController interface {
	// Targets returns the cached display snapshot from the last
	// enumeration.
	Targets() []DisplayTarget

	// Refresh re-enumerates displays, wholesale replacing the cache.
	Refresh() ([]DisplayTarget, error)

	// IsEnabled reports whether HDR is currently active on a target.
	IsEnabled(t DisplayTarget) (bool, error)

	// SetGlobal applies the requested state to every HDR-capable
	// target. Unsupported targets are omitted entirely; one display's
	// failure never prevents attempting the rest. The result slice
	// covers exactly the supported-target subset.
	SetGlobal(enable bool) []SetResult

	// AnyEnabled reports whether HDR is active on any capable display.
	AnyEnabled() bool

	// CapableCount returns the number of HDR-capable displays in the
	// current snapshot.
	CapableCount() int
}

// StatePublisher receives the controller's state snapshot after every
// transition. Implementations must not block.
type StatePublisher interface {
	Publish(state AppState)
}

// StatePublisherFunc adapts a function to the StatePublisher interface.
type StatePublisherFunc func(state AppState)

// Publish calls the wrapped function.
func (f StatePublisherFunc) Publish(state AppState) { f(state) }
