//go:build integration

package integration

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"hdrd/internal/controller"
	"hdrd/internal/domain"
	"hdrd/internal/identity"
	"hdrd/internal/monitor"
	"hdrd/internal/watchlist"
)

// scriptedLister serves a mutable process list, standing in for the OS
// snapshot.
type scriptedLister struct {
	mu    sync.Mutex
	procs []domain.ProcessInfo
}

func (l *scriptedLister) Snapshot(int) ([]domain.ProcessInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.ProcessInfo, len(l.procs))
	copy(out, l.procs)
	return out, nil
}

func (l *scriptedLister) set(procs ...domain.ProcessInfo) {
	l.mu.Lock()
	l.procs = procs
	l.mu.Unlock()
}

// recordingDisplay tracks the HDR state the coordinator commands.
type recordingDisplay struct {
	mu       sync.Mutex
	capable  int
	enabled  bool
	setCalls int
}

func (d *recordingDisplay) Targets() []domain.DisplayTarget          { return nil }
func (d *recordingDisplay) Refresh() ([]domain.DisplayTarget, error) { return nil, nil }

func (d *recordingDisplay) IsEnabled(domain.DisplayTarget) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled, nil
}

func (d *recordingDisplay) SetGlobal(enable bool) []domain.SetResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setCalls++
	d.enabled = enable
	results := make([]domain.SetResult, d.capable)
	return results
}

func (d *recordingDisplay) AnyEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled
}

func (d *recordingDisplay) CapableCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.capable
}

func (d *recordingDisplay) hdrOn() bool { return d.AnyEnabled() }

var _ = Describe("HDR coordination flow", func() {
	var (
		ctx       context.Context
		cancel    context.CancelFunc
		lister    *scriptedLister
		display   *recordingDisplay
		registry  *watchlist.Registry
		hdrEvents chan domain.HdrStateEvent
		done      chan struct{}
	)

	startDaemon := func() {
		logger := zap.NewNop()
		procEvents := make(chan domain.ProcessEvent, 64)
		hdrEvents = make(chan domain.HdrStateEvent, 16)

		mon := monitor.New(lister, identity.NewResolver(logger), registry,
			procEvents, 20*time.Millisecond, logger)
		coord := controller.New(display, registry, procEvents, hdrEvents,
			domain.StatePublisherFunc(func(domain.AppState) {}), logger)

		done = make(chan struct{})
		go mon.Run(ctx)
		go func() {
			defer close(done)
			coord.Run(ctx)
		}()
	}

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		lister = &scriptedLister{}
		display = &recordingDisplay{capable: 1}
		registry = watchlist.NewRegistry()
		registry.Update([]domain.MonitoredApp{{
			Kind:        domain.KindWin32,
			DisplayName: "Game",
			ProcessName: "game",
			Enabled:     true,
		}})
	})

	AfterEach(func() {
		cancel()
		Eventually(done, 2*time.Second).Should(BeClosed())
	})

	Context("when a monitored application starts", func() {
		It("should enable HDR", func() {
			startDaemon()

			lister.set(domain.ProcessInfo{PID: 100, ExeName: "game.exe"})

			Eventually(display.hdrOn, 2*time.Second).Should(BeTrue())
		})

		It("should ignore unmonitored applications", func() {
			startDaemon()

			lister.set(domain.ProcessInfo{PID: 200, ExeName: "chrome.exe"})

			Consistently(display.hdrOn, 300*time.Millisecond).Should(BeFalse())
		})
	})

	Context("when the last monitored application exits", func() {
		It("should disable HDR after the debounce window", func() {
			startDaemon()

			lister.set(domain.ProcessInfo{PID: 100, ExeName: "game.exe"})
			Eventually(display.hdrOn, 2*time.Second).Should(BeTrue())

			// Let the debounce window pass before the app exits.
			time.Sleep(600 * time.Millisecond)
			lister.set()

			Eventually(display.hdrOn, 2*time.Second).Should(BeFalse())
		})

		It("should keep HDR on across a quick relaunch", func() {
			startDaemon()

			lister.set(domain.ProcessInfo{PID: 100, ExeName: "game.exe"})
			Eventually(display.hdrOn, 2*time.Second).Should(BeTrue())

			// Exit right after the enable toggle: the stop lands inside
			// the debounce window and is absorbed.
			lister.set()
			time.Sleep(30 * time.Millisecond)
			lister.set(domain.ProcessInfo{PID: 101, ExeName: "game.exe"})

			Consistently(display.hdrOn, 400*time.Millisecond).Should(BeTrue())
		})
	})

	Context("when HDR is changed externally", func() {
		It("should adopt an external disable without fighting it", func() {
			startDaemon()

			lister.set(domain.ProcessInfo{PID: 100, ExeName: "game.exe"})
			Eventually(display.hdrOn, 2*time.Second).Should(BeTrue())

			// The user turns HDR off in settings.
			display.mu.Lock()
			display.enabled = false
			calls := display.setCalls
			display.mu.Unlock()
			hdrEvents <- domain.HdrStateEvent{Kind: domain.HdrDisabled}

			// No counter-command is issued while the app keeps running.
			Consistently(func() int {
				display.mu.Lock()
				defer display.mu.Unlock()
				return display.setCalls
			}, 400*time.Millisecond).Should(Equal(calls))
		})
	})

	Context("when a live configuration change removes the app", func() {
		It("should not react to its exit", func() {
			startDaemon()

			lister.set(domain.ProcessInfo{PID: 100, ExeName: "game.exe"})
			Eventually(display.hdrOn, 2*time.Second).Should(BeTrue())

			time.Sleep(600 * time.Millisecond)
			registry.Update(nil)
			lister.set()

			Consistently(display.hdrOn, 400*time.Millisecond).Should(BeTrue())
		})
	})
})
