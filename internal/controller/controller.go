// Package controller coordinates process lifecycle events and external
// HDR changes into enable/disable decisions for the display layer.
package controller

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"hdrd/internal/domain"
	"hdrd/internal/profiler"
)

const (
	// DebounceWindow suppresses a disable that follows the last HDR
	// toggle too closely. Games relaunching (launchers, crash-restart
	// loops) would otherwise flap the display.
	DebounceWindow = 500 * time.Millisecond

	// eventWaitTimeout bounds the wait for a process event so external
	// HDR events are drained regularly even when no processes change.
	eventWaitTimeout = 100 * time.Millisecond
)

// Coordinator owns the daemon's HDR decision state. All fields are
// confined to the Run goroutine except lastToggle and the one-shot
// flags, which other goroutines may read through published snapshots.
type Coordinator struct {
	display    domain.DisplayController
	watch      domain.WatchReader
	procEvents <-chan domain.ProcessEvent
	hdrEvents  <-chan domain.HdrStateEvent
	publisher  domain.StatePublisher
	logger     *zap.Logger

	// activeCount is the number of watched apps currently running.
	// Decrements saturate at zero so a spurious Stopped can never
	// underflow into a huge count.
	activeCount int
	// active refcounts running apps per identifier, for display names.
	active map[domain.AppIdentifier]int

	// hdrEnabled is this process's view of HDR state. Kept optimistic
	// on partial set failures; external events overwrite it.
	hdrEnabled bool
	// hdrAvailable tracks whether any capable display was present at
	// the last enumeration.
	hdrAvailable bool

	// lastToggle is the UnixNano timestamp of the last toggle this
	// process issued. Zero means never, which always permits a disable.
	lastToggle atomic.Int64

	becameAvailable atomic.Bool
	noHdrAtStartup  atomic.Bool

	debounce time.Duration
	now      func() time.Time
}

// New creates a coordinator seeded from the display layer's current
// state, so startup reconciles with HDR already on and flags the case
// where no capable display exists yet.
func New(
	display domain.DisplayController,
	watch domain.WatchReader,
	procEvents <-chan domain.ProcessEvent,
	hdrEvents <-chan domain.HdrStateEvent,
	publisher domain.StatePublisher,
	logger *zap.Logger,
) *Coordinator {
	c := &Coordinator{
		display:    display,
		watch:      watch,
		procEvents: procEvents,
		hdrEvents:  hdrEvents,
		publisher:  publisher,
		logger:     logger,
		active:     make(map[domain.AppIdentifier]int),
		debounce:   DebounceWindow,
		now:        time.Now,
	}
	c.hdrEnabled = display.AnyEnabled()
	c.hdrAvailable = display.CapableCount() > 0
	if !c.hdrAvailable {
		c.noHdrAtStartup.Store(true)
		logger.Warn("no HDR-capable display detected at startup")
	}
	logger.Info("controller initialized",
		zap.Bool("hdrEnabled", c.hdrEnabled),
		zap.Bool("hdrAvailable", c.hdrAvailable))
	return c
}

// Run is the coordination loop. Process events are the primary input;
// between them, pending external HDR events are drained without
// blocking so neither source starves the other.
func (c *Coordinator) Run(ctx context.Context) {
	wait := time.NewTimer(eventWaitTimeout)
	defer wait.Stop()

	for {
		wait.Reset(eventWaitTimeout)
		select {
		case <-ctx.Done():
			c.logger.Info("controller stopping")
			return
		case ev := <-c.procEvents:
			c.handleProcessEvent(ev)
		case <-wait.C:
		}

		for drained := false; !drained; {
			select {
			case ev := <-c.hdrEvents:
				c.handleHdrEvent(ev)
			default:
				drained = true
			}
		}
	}
}

func (c *Coordinator) handleProcessEvent(ev domain.ProcessEvent) {
	ws := c.watch.Current()
	if !ws.Contains(ev.App) {
		// The app was unwatched after the event was queued.
		c.logger.Debug("dropping event for unwatched app", zap.Stringer("event", ev))
		return
	}

	switch ev.Kind {
	case domain.ProcessStarted:
		c.active[ev.App]++
		c.activeCount++
		c.logger.Info("monitored app started",
			zap.Stringer("app", ev.App),
			zap.Int("active", c.activeCount))
		// The first running app turns HDR on. Enabling is never
		// debounced; only disables flap.
		if c.activeCount == 1 && !c.hdrEnabled {
			c.enable()
		}

	case domain.ProcessStopped:
		if c.activeCount > 0 {
			c.activeCount--
		}
		if n := c.active[ev.App]; n > 1 {
			c.active[ev.App] = n - 1
		} else {
			delete(c.active, ev.App)
		}
		c.logger.Info("monitored app stopped",
			zap.Stringer("app", ev.App),
			zap.Int("active", c.activeCount))
		if c.activeCount == 0 && c.hdrEnabled {
			if since := c.sinceLastToggle(); since < c.debounce {
				// A relaunch is likely in flight; skip the disable
				// rather than flap the display.
				c.logger.Debug("disable absorbed by debounce window",
					zap.Duration("sinceLastToggle", since))
			} else {
				c.disable()
			}
		}
	}

	c.publish(ev.String())
}

func (c *Coordinator) handleHdrEvent(ev domain.HdrStateEvent) {
	switch ev.Kind {
	case domain.HdrEnabled:
		// Respect the user's explicit choice; issue no command.
		c.hdrEnabled = true
		c.logger.Info("adopting external HDR enable")
		c.publish("hdr enabled externally")

	case domain.HdrDisabled:
		c.hdrEnabled = false
		c.logger.Info("adopting external HDR disable")
		c.publish("hdr disabled externally")

	case domain.DisplayConfigChanged:
		if _, err := c.display.Refresh(); err != nil {
			c.logger.Warn("display re-enumeration failed", zap.Error(err))
		}
		capable := c.display.CapableCount() > 0
		if capable && !c.hdrAvailable {
			c.becameAvailable.Store(true)
			c.logger.Info("HDR capability became available")
		}
		c.hdrAvailable = capable
		// A capable display appearing while apps are already running
		// gets HDR turned on as if the first app had just started.
		if capable && c.activeCount > 0 && !c.hdrEnabled {
			c.enable()
		}
		c.publish(fmt.Sprintf("display configuration changed (%d hdr-capable)", ev.CapableDisplays))
	}
}

// enable turns HDR on across capable displays. Partial failure keeps
// the optimistic local view; the external watcher corrects real drift.
func (c *Coordinator) enable() {
	results := c.display.SetGlobal(true)
	if len(results) == 0 {
		c.logger.Warn("enable requested but no HDR-capable display")
		return
	}
	c.logResults("enable", results)
	c.hdrEnabled = true
	c.markToggle()
	profiler.Get().RecordHdrToggle()
}

func (c *Coordinator) disable() {
	results := c.display.SetGlobal(false)
	if len(results) == 0 {
		c.logger.Warn("disable requested but no HDR-capable display")
		return
	}
	c.logResults("disable", results)
	c.hdrEnabled = false
	c.markToggle()
	profiler.Get().RecordHdrToggle()
}

func (c *Coordinator) logResults(op string, results []domain.SetResult) {
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		c.logger.Warn("HDR "+op+" partially failed",
			zap.Int("displays", len(results)),
			zap.Int("failed", failed))
		return
	}
	c.logger.Info("HDR "+op+" applied", zap.Int("displays", len(results)))
}

func (c *Coordinator) markToggle() {
	c.lastToggle.Store(c.now().UnixNano())
}

func (c *Coordinator) sinceLastToggle() time.Duration {
	last := c.lastToggle.Load()
	if last == 0 {
		return time.Duration(1<<63 - 1)
	}
	return c.now().Sub(time.Unix(0, last))
}

// publish pushes a state snapshot to the presentation layer. One-shot
// flags are consumed here: they appear in exactly one snapshot.
func (c *Coordinator) publish(lastEvent string) {
	ws := c.watch.Current()
	names := make([]string, 0, len(c.active))
	for id := range c.active {
		names = append(names, ws.DisplayNameOf(id))
	}
	sort.Strings(names)

	c.publisher.Publish(domain.AppState{
		HdrEnabled:         c.hdrEnabled,
		ActiveApps:         names,
		HdrBecameAvailable: c.becameAvailable.Swap(false),
		NoHdrAtStartup:     c.noHdrAtStartup.Swap(false),
		LastEvent:          lastEvent,
	})
}
