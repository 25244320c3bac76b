package hdr

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hdrd/internal/domain"
	"hdrd/internal/profiler"
)

// Recheck schedule armed after a notification whose immediate state
// check saw no change: display/setting notifications routinely arrive
// before the HDR state is readable, so the watcher polls briefly
// instead of trusting the first read.
const (
	RecheckInterval = 500 * time.Millisecond
	MaxRecheckCount = 10
)

// NotificationKind distinguishes the OS notifications the shim forwards.
type NotificationKind uint8

const (
	// NoteSettingChange covers broadcast setting changes, including HDR
	// toggled from the OS settings UI.
	NoteSettingChange NotificationKind = iota
	// NoteDisplayChange covers display topology or mode changes.
	NoteDisplayChange
)

// Watcher observes HDR state changes made outside this process and
// reports them as events. The OS delivers raw notifications through a
// minimal callback shim; all interpretation happens here, on the
// watcher's own goroutine.
type Watcher struct {
	display domain.DisplayController
	events  chan<- domain.HdrStateEvent

	notifications chan NotificationKind
	cachedState   bool

	recheckInterval time.Duration
	maxRechecks     int

	logger *zap.Logger
}

// NewWatcher creates a watcher seeded with the current HDR state so the
// first notification diffs against reality, not a zero value.
func NewWatcher(display domain.DisplayController, events chan<- domain.HdrStateEvent, logger *zap.Logger) *Watcher {
	return &Watcher{
		display:         display,
		events:          events,
		notifications:   make(chan NotificationKind, 32),
		cachedState:     display.AnyEnabled(),
		recheckInterval: RecheckInterval,
		maxRechecks:     MaxRecheckCount,
		logger:          logger,
	}
}

// Notify forwards one OS notification into the watcher. It never
// blocks: the OS callback must return promptly, and a dropped
// notification only delays detection until the next one.
func (w *Watcher) Notify(kind NotificationKind) {
	select {
	case w.notifications <- kind:
	default:
	}
}

// Run consumes notifications until the context is canceled. On each
// notification it checks HDR state immediately; when the state has not
// changed yet it arms a bounded recheck schedule.
func (w *Watcher) Run(ctx context.Context) {
	w.logger.Info("HDR state watcher started", zap.Bool("hdrEnabled", w.cachedState))

	var (
		recheck   *time.Timer
		recheckC  <-chan time.Time
		remaining int
	)
	disarm := func() {
		if recheck != nil {
			recheck.Stop()
			recheck = nil
			recheckC = nil
		}
	}
	arm := func() {
		disarm()
		remaining = w.maxRechecks
		recheck = time.NewTimer(w.recheckInterval)
		recheckC = recheck.C
	}
	defer disarm()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("HDR state watcher stopping")
			return

		case kind := <-w.notifications:
			if kind == NoteDisplayChange {
				w.handleDisplayChange()
			}
			if w.checkOnce() {
				disarm()
			} else {
				arm()
			}

		case <-recheckC:
			if w.checkOnce() {
				disarm()
				continue
			}
			remaining--
			if remaining <= 0 {
				// Budget exhausted without a detected change: the
				// notification was about something else.
				w.logger.Warn("HDR recheck budget exhausted without state change")
				profiler.Get().RecordRecheckExhaustion()
				disarm()
				continue
			}
			recheck.Reset(w.recheckInterval)
		}
	}
}

// handleDisplayChange re-enumerates displays and reports the new
// capable count so the coordinator can react to capability appearing
// or disappearing.
func (w *Watcher) handleDisplayChange() {
	if _, err := w.display.Refresh(); err != nil {
		w.logger.Warn("display re-enumeration failed", zap.Error(err))
		return
	}
	capable := w.display.CapableCount()
	w.logger.Info("display configuration changed", zap.Int("hdrCapable", capable))
	w.emit(domain.HdrStateEvent{Kind: domain.DisplayConfigChanged, CapableDisplays: capable})
}

// checkOnce compares live HDR state against the cached one, emitting an
// event when they differ. Returns whether a change was detected.
func (w *Watcher) checkOnce() bool {
	current := w.display.AnyEnabled()
	if current == w.cachedState {
		return false
	}
	w.cachedState = current
	profiler.Get().RecordExternalChange()

	kind := domain.HdrDisabled
	if current {
		kind = domain.HdrEnabled
	}
	w.logger.Info("HDR state changed externally", zap.Bool("enabled", current))
	w.emit(domain.HdrStateEvent{Kind: kind})
	return true
}

func (w *Watcher) emit(ev domain.HdrStateEvent) {
	select {
	case w.events <- ev:
	default:
		w.logger.Warn("HDR event channel full, dropping event")
	}
}
