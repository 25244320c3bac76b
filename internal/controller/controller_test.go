package controller

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hdrd/internal/domain"
	"hdrd/internal/watchlist"
)

// fakeDisplay records SetGlobal calls and serves canned capability.
type fakeDisplay struct {
	mu       sync.Mutex
	capable  int
	enabled  bool
	setErr   error
	setCalls []bool
}

func (f *fakeDisplay) Targets() []domain.DisplayTarget          { return nil }
func (f *fakeDisplay) Refresh() ([]domain.DisplayTarget, error) { return nil, nil }

func (f *fakeDisplay) IsEnabled(domain.DisplayTarget) (bool, error) {
	return f.enabled, nil
}

func (f *fakeDisplay) SetGlobal(enable bool) []domain.SetResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCalls = append(f.setCalls, enable)
	results := make([]domain.SetResult, 0, f.capable)
	for i := 0; i < f.capable; i++ {
		var err error
		if i == 0 {
			err = f.setErr
		}
		results = append(results, domain.SetResult{Err: err})
	}
	return results
}

func (f *fakeDisplay) AnyEnabled() bool  { return f.enabled }
func (f *fakeDisplay) CapableCount() int { return f.capable }

// collectingPublisher retains every published snapshot.
type collectingPublisher struct {
	states []domain.AppState
}

func (p *collectingPublisher) Publish(s domain.AppState) { p.states = append(p.states, s) }

func (p *collectingPublisher) last(t *testing.T) domain.AppState {
	t.Helper()
	require.NotEmpty(t, p.states)
	return p.states[len(p.states)-1]
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCoordinator(display *fakeDisplay, apps ...domain.MonitoredApp) (*Coordinator, *collectingPublisher, *fakeClock) {
	reg := watchlist.NewRegistry()
	reg.Update(apps)
	pub := &collectingPublisher{}
	clock := &fakeClock{t: time.Unix(1000, 0)}
	c := New(display, reg, nil, nil, pub, zap.NewNop())
	c.now = clock.now
	return c, pub, clock
}

func watched(name string) domain.MonitoredApp {
	return domain.MonitoredApp{Kind: domain.KindWin32, DisplayName: name, ProcessName: name, Enabled: true}
}

func started(name string) domain.ProcessEvent {
	return domain.ProcessEvent{Kind: domain.ProcessStarted, App: domain.Win32ID(name)}
}

func stopped(name string) domain.ProcessEvent {
	return domain.ProcessEvent{Kind: domain.ProcessStopped, App: domain.Win32ID(name)}
}

func TestFirstAppStartEnablesHdr(t *testing.T) {
	display := &fakeDisplay{capable: 1}
	c, pub, _ := newTestCoordinator(display, watched("game"))

	c.handleProcessEvent(started("game"))

	assert.Equal(t, []bool{true}, display.setCalls)
	state := pub.last(t)
	assert.True(t, state.HdrEnabled)
	assert.Equal(t, []string{"game"}, state.ActiveApps)
}

func TestSecondAppStartIssuesNoCommand(t *testing.T) {
	display := &fakeDisplay{capable: 1}
	c, pub, _ := newTestCoordinator(display, watched("game"), watched("other"))

	c.handleProcessEvent(started("game"))
	c.handleProcessEvent(started("other"))

	assert.Equal(t, []bool{true}, display.setCalls)
	assert.Equal(t, []string{"game", "other"}, pub.last(t).ActiveApps)
}

func TestLastAppStopDisablesAfterDebounce(t *testing.T) {
	display := &fakeDisplay{capable: 1}
	c, pub, clock := newTestCoordinator(display, watched("game"))

	c.handleProcessEvent(started("game"))
	clock.advance(600 * time.Millisecond)
	c.handleProcessEvent(stopped("game"))

	assert.Equal(t, []bool{true, false}, display.setCalls)
	state := pub.last(t)
	assert.False(t, state.HdrEnabled)
	assert.Empty(t, state.ActiveApps)
}

func TestStopWithinDebounceWindowIsAbsorbed(t *testing.T) {
	display := &fakeDisplay{capable: 1}
	c, pub, clock := newTestCoordinator(display, watched("game"))

	c.handleProcessEvent(started("game"))
	clock.advance(100 * time.Millisecond)
	c.handleProcessEvent(stopped("game"))

	// No disable was issued; the local view still says enabled.
	assert.Equal(t, []bool{true}, display.setCalls)
	assert.True(t, pub.last(t).HdrEnabled)
}

func TestDebounceWalkthrough(t *testing.T) {
	display := &fakeDisplay{capable: 1}
	c, _, clock := newTestCoordinator(display, watched("game"))

	// t=0: start, HDR enabled.
	c.handleProcessEvent(started("game"))
	// t=100ms: stop inside the window, absorbed.
	clock.advance(100 * time.Millisecond)
	c.handleProcessEvent(stopped("game"))
	// t=150ms: relaunch; HDR is already on, no command.
	clock.advance(50 * time.Millisecond)
	c.handleProcessEvent(started("game"))
	// t=750ms: stop outside the window, disable goes through.
	clock.advance(600 * time.Millisecond)
	c.handleProcessEvent(stopped("game"))

	assert.Equal(t, []bool{true, false}, display.setCalls)
}

func TestEnableIsNeverDebounced(t *testing.T) {
	display := &fakeDisplay{capable: 1}
	c, _, clock := newTestCoordinator(display, watched("game"))

	c.handleProcessEvent(started("game"))
	clock.advance(600 * time.Millisecond)
	c.handleProcessEvent(stopped("game"))
	// Relaunch immediately after the disable toggle: still enables.
	clock.advance(50 * time.Millisecond)
	c.handleProcessEvent(started("game"))

	assert.Equal(t, []bool{true, false, true}, display.setCalls)
}

func TestSpuriousStopSaturatesAtZero(t *testing.T) {
	display := &fakeDisplay{capable: 1}
	c, _, _ := newTestCoordinator(display, watched("game"))

	c.handleProcessEvent(stopped("game"))
	c.handleProcessEvent(stopped("game"))

	assert.Empty(t, display.setCalls)
	// The count did not underflow: the next start is still the first.
	c.handleProcessEvent(started("game"))
	assert.Equal(t, []bool{true}, display.setCalls)
}

func TestExternalEnableAdoptedWithoutCommand(t *testing.T) {
	display := &fakeDisplay{capable: 1}
	c, pub, _ := newTestCoordinator(display, watched("game"))

	c.handleHdrEvent(domain.HdrStateEvent{Kind: domain.HdrEnabled})

	assert.Empty(t, display.setCalls)
	assert.True(t, pub.last(t).HdrEnabled)

	// A later start sees HDR already on and issues nothing.
	c.handleProcessEvent(started("game"))
	assert.Empty(t, display.setCalls)
}

func TestExternalDisableAdopted(t *testing.T) {
	display := &fakeDisplay{capable: 1}
	c, pub, _ := newTestCoordinator(display, watched("game"))

	c.handleProcessEvent(started("game"))
	c.handleHdrEvent(domain.HdrStateEvent{Kind: domain.HdrDisabled})

	assert.False(t, pub.last(t).HdrEnabled)
	assert.Equal(t, []bool{true}, display.setCalls)
}

func TestStartupWithHdrAlreadyOn(t *testing.T) {
	display := &fakeDisplay{capable: 1, enabled: true}
	c, _, _ := newTestCoordinator(display, watched("game"))

	// The first start issues no command because HDR is already on.
	c.handleProcessEvent(started("game"))
	assert.Empty(t, display.setCalls)
	assert.True(t, c.hdrEnabled)
}

func TestNoHdrAtStartupFlagIsOneShot(t *testing.T) {
	display := &fakeDisplay{capable: 0}
	c, pub, _ := newTestCoordinator(display, watched("game"))

	c.handleProcessEvent(started("game"))
	assert.True(t, pub.states[0].NoHdrAtStartup)

	c.handleProcessEvent(stopped("game"))
	assert.False(t, pub.last(t).NoHdrAtStartup)
}

func TestCapabilityBecomingAvailableEnablesForRunningApps(t *testing.T) {
	display := &fakeDisplay{capable: 0}
	c, pub, _ := newTestCoordinator(display, watched("game"))

	// App starts with no capable display: enable is requested but the
	// display layer has nothing to apply it to.
	c.handleProcessEvent(started("game"))
	require.Equal(t, []bool{true}, display.setCalls)
	assert.False(t, pub.last(t).HdrEnabled)

	// A capable display appears; HDR turns on for the running app.
	display.capable = 1
	c.handleHdrEvent(domain.HdrStateEvent{Kind: domain.DisplayConfigChanged, CapableDisplays: 1})

	assert.Equal(t, []bool{true, true}, display.setCalls)
	state := pub.last(t)
	assert.True(t, state.HdrEnabled)
	assert.True(t, state.HdrBecameAvailable)

	// One-shot: the flag does not appear again.
	c.handleHdrEvent(domain.HdrStateEvent{Kind: domain.DisplayConfigChanged, CapableDisplays: 1})
	assert.False(t, pub.last(t).HdrBecameAvailable)
}

func TestUnwatchedEventDropped(t *testing.T) {
	display := &fakeDisplay{capable: 1}
	c, pub, _ := newTestCoordinator(display, watched("game"))

	c.handleProcessEvent(started("chrome"))

	assert.Empty(t, display.setCalls)
	assert.Empty(t, pub.states)
}

func TestPartialSetFailureKeepsOptimisticState(t *testing.T) {
	display := &fakeDisplay{capable: 2, setErr: errors.New("display busy")}
	c, pub, clock := newTestCoordinator(display, watched("game"))

	c.handleProcessEvent(started("game"))
	assert.True(t, pub.last(t).HdrEnabled)

	// The stop still issues a disable once the window passes.
	clock.advance(time.Second)
	c.handleProcessEvent(stopped("game"))
	assert.Equal(t, []bool{true, false}, display.setCalls)
}

func TestRefcountedDisplayNames(t *testing.T) {
	display := &fakeDisplay{capable: 1}
	c, pub, clock := newTestCoordinator(display, watched("game"))

	// Two instances of the same app: one stop keeps the name listed.
	c.handleProcessEvent(started("game"))
	c.handleProcessEvent(started("game"))
	clock.advance(time.Second)
	c.handleProcessEvent(stopped("game"))

	assert.Equal(t, []string{"game"}, pub.last(t).ActiveApps)

	c.handleProcessEvent(stopped("game"))
	assert.Empty(t, pub.last(t).ActiveApps)
}
