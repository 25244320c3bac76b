package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hdrd/internal/domain"
	"hdrd/internal/identity"
	"hdrd/internal/profiler"
)

// DefaultInterval is the polling interval used when the configuration
// does not supply one. Typical configured values are 500-2000ms.
const DefaultInterval = 1000 * time.Millisecond

// defaultProcessCount seeds the snapshot capacity estimate. A typical
// Windows system runs 150-250 processes.
const defaultProcessCount = 200

// Monitor polls the OS process list, resolves identities for watched
// candidates, diffs against the previous snapshot and emits
// Started/Stopped events.
type Monitor struct {
	lister   domain.ProcessLister
	resolver domain.IdentityResolver
	watch    domain.WatchReader
	events   chan<- domain.ProcessEvent
	interval time.Duration

	// previous is the watched-identifier set from the last poll.
	previous map[domain.AppIdentifier]struct{}
	// estimatedCount is an exponential moving average of the total
	// process count, used to right-size the next snapshot's storage.
	estimatedCount int

	logger *zap.Logger
}

// New creates a process monitor. Events are delivered on the given
// channel; the receiver is expected to keep draining it.
func New(
	lister domain.ProcessLister,
	resolver domain.IdentityResolver,
	watch domain.WatchReader,
	events chan<- domain.ProcessEvent,
	interval time.Duration,
	logger *zap.Logger,
) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		lister:         lister,
		resolver:       resolver,
		watch:          watch,
		events:         events,
		interval:       interval,
		previous:       make(map[domain.AppIdentifier]struct{}),
		estimatedCount: defaultProcessCount,
		logger:         logger,
	}
}

// Run starts the polling loop. This blocks until context is canceled;
// in normal operation the daemon runs it for the process lifetime.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("process monitor started",
		zap.Duration("interval", m.interval))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("process monitor stopping")
			return
		case <-ticker.C:
			if err := m.poll(); err != nil {
				// Cycle-level failure: log and retry on the next tick.
				m.logger.Error("process poll failed", zap.Error(err))
			}
		}
	}
}

// poll takes one snapshot, diffs it against the previous one and emits
// lifecycle events for watched applications.
func (m *Monitor) poll() error {
	watch := m.watch.Current()

	procs, err := m.lister.Snapshot(m.estimatedCount)
	if err != nil {
		return err
	}
	profiler.Get().RecordPollCycle()

	current := make(map[domain.AppIdentifier]struct{}, len(m.previous)+1)
	for _, p := range procs {
		id, watched := m.classify(p, watch)
		if watched {
			current[id] = struct{}{}
		}
	}

	// Re-read the watch list before emitting: a concurrent update may
	// have removed an app between diff computation and emission.
	live := m.watch.Current()

	for id := range current {
		if _, was := m.previous[id]; !was && live.Contains(id) {
			m.emit(domain.ProcessEvent{Kind: domain.ProcessStarted, App: id})
		}
	}
	for id := range m.previous {
		if _, still := current[id]; !still && live.Contains(id) {
			m.emit(domain.ProcessEvent{Kind: domain.ProcessStopped, App: id})
		}
	}

	// Smooth the capacity estimate for the next snapshot.
	m.estimatedCount = (m.estimatedCount*3 + len(procs)) / 4
	m.previous = current
	return nil
}

// classify resolves a snapshot entry to an identity, doing the
// expensive package lookup only for candidates that can actually match
// the watch list. Returns the identity and whether it is watched.
func (m *Monitor) classify(p domain.ProcessInfo, watch *domain.WatchState) (domain.AppIdentifier, bool) {
	if id, ok := m.resolver.Cached(p.PID); ok {
		return id, watch.Contains(id)
	}

	if !watch.HasUWP() {
		// Hot path: only Win32 apps are watched, so the stem decides
		// membership without touching the OS.
		stem := domain.Win32ID(identity.Stem(p.ExeName))
		if !watch.Contains(stem) {
			return stem, false
		}
		id := m.resolver.Resolve(p.PID, p.ExeName)
		return id, watch.Contains(id)
	}

	// Packaged apps are watched: every process is a candidate until
	// its package association is known.
	id := m.resolver.Resolve(p.PID, p.ExeName)
	return id, watch.Contains(id)
}

func (m *Monitor) emit(ev domain.ProcessEvent) {
	m.logger.Info("detected process transition", zap.Stringer("event", ev))
	profiler.Get().RecordProcessEvent()
	m.events <- ev
}
