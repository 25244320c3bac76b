package monitor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hdrd/internal/domain"
	"hdrd/internal/identity"
	"hdrd/internal/watchlist"
)

// fakeLister implements domain.ProcessLister for testing.
type fakeLister struct {
	procs []domain.ProcessInfo
	err   error
	hints []int
}

func (f *fakeLister) Snapshot(capacityHint int) ([]domain.ProcessInfo, error) {
	f.hints = append(f.hints, capacityHint)
	if f.err != nil {
		return nil, f.err
	}
	return f.procs, nil
}

// fakeResolver implements domain.IdentityResolver, counting resolve
// calls so tests can assert the hot path skips it.
type fakeResolver struct {
	packaged     map[int32]string // pid -> family name
	resolveCalls int
}

func (f *fakeResolver) Resolve(pid int32, exeName string) domain.AppIdentifier {
	f.resolveCalls++
	if family, ok := f.packaged[pid]; ok {
		return domain.UWPID(family)
	}
	return domain.Win32ID(identity.Stem(exeName))
}

func (f *fakeResolver) Cached(int32) (domain.AppIdentifier, bool) {
	return domain.AppIdentifier{}, false
}

func newTestMonitor(lister *fakeLister, resolver *fakeResolver, apps ...domain.MonitoredApp) (*Monitor, *watchlist.Registry, chan domain.ProcessEvent) {
	reg := watchlist.NewRegistry()
	reg.Update(apps)
	events := make(chan domain.ProcessEvent, 32)
	m := New(lister, resolver, reg, events, DefaultInterval, zap.NewNop())
	return m, reg, events
}

func win32Watch(name string) domain.MonitoredApp {
	return domain.MonitoredApp{Kind: domain.KindWin32, DisplayName: name, ProcessName: name, Enabled: true}
}

func uwpWatch(family string) domain.MonitoredApp {
	return domain.MonitoredApp{Kind: domain.KindUWP, DisplayName: family, PackageFamilyName: family, Enabled: true}
}

func drain(ch chan domain.ProcessEvent) []domain.ProcessEvent {
	var out []domain.ProcessEvent
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestPoll_EmitsStartedForWatchedApp(t *testing.T) {
	lister := &fakeLister{procs: []domain.ProcessInfo{
		{PID: 1, ExeName: "explorer.exe"},
		{PID: 2, ExeName: "Game.exe"},
	}}
	m, _, events := newTestMonitor(lister, &fakeResolver{}, win32Watch("game"))

	require.NoError(t, m.poll())

	got := drain(events)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ProcessStarted, got[0].Kind)
	assert.Equal(t, domain.Win32ID("game"), got[0].App)
}

func TestPoll_EmitsStoppedWhenAppExits(t *testing.T) {
	lister := &fakeLister{procs: []domain.ProcessInfo{{PID: 2, ExeName: "game.exe"}}}
	m, _, events := newTestMonitor(lister, &fakeResolver{}, win32Watch("game"))

	require.NoError(t, m.poll())
	drain(events)

	lister.procs = nil
	require.NoError(t, m.poll())

	got := drain(events)
	require.Len(t, got, 1)
	assert.Equal(t, domain.ProcessStopped, got[0].Kind)
	assert.Equal(t, domain.Win32ID("game"), got[0].App)
}

func TestPoll_NoEventsWithoutStateChange(t *testing.T) {
	lister := &fakeLister{procs: []domain.ProcessInfo{{PID: 2, ExeName: "game.exe"}}}
	m, _, events := newTestMonitor(lister, &fakeResolver{}, win32Watch("game"))

	require.NoError(t, m.poll())
	drain(events)

	require.NoError(t, m.poll())
	assert.Empty(t, drain(events))
}

func TestPoll_UnwatchedProcessesIgnored(t *testing.T) {
	lister := &fakeLister{procs: []domain.ProcessInfo{
		{PID: 1, ExeName: "explorer.exe"},
		{PID: 3, ExeName: "chrome.exe"},
	}}
	m, _, events := newTestMonitor(lister, &fakeResolver{}, win32Watch("game"))

	require.NoError(t, m.poll())
	assert.Empty(t, drain(events))
}

func TestPoll_HotPathSkipsResolverForUnwatched(t *testing.T) {
	resolver := &fakeResolver{}
	lister := &fakeLister{procs: []domain.ProcessInfo{
		{PID: 1, ExeName: "explorer.exe"},
		{PID: 2, ExeName: "game.exe"},
		{PID: 3, ExeName: "chrome.exe"},
	}}
	m, _, _ := newTestMonitor(lister, resolver, win32Watch("game"))

	require.NoError(t, m.poll())

	// Only the watched stem goes through full resolution.
	assert.Equal(t, 1, resolver.resolveCalls)
}

func TestPoll_ResolvesEverythingWhenUWPWatched(t *testing.T) {
	resolver := &fakeResolver{packaged: map[int32]string{7: "Pub.App_abc123"}}
	lister := &fakeLister{procs: []domain.ProcessInfo{
		{PID: 1, ExeName: "explorer.exe"},
		{PID: 7, ExeName: "app.exe"},
	}}
	m, _, events := newTestMonitor(lister, resolver, uwpWatch("Pub.App_abc123"))

	require.NoError(t, m.poll())

	assert.Equal(t, 2, resolver.resolveCalls)
	got := drain(events)
	require.Len(t, got, 1)
	assert.Equal(t, domain.UWPID("Pub.App_abc123"), got[0].App)
}

func TestPoll_CaseInsensitiveWin32Match(t *testing.T) {
	lister := &fakeLister{procs: []domain.ProcessInfo{{PID: 2, ExeName: "GAME.EXE"}}}
	m, _, events := newTestMonitor(lister, &fakeResolver{}, win32Watch("game"))

	require.NoError(t, m.poll())

	got := drain(events)
	require.Len(t, got, 1)
	assert.Equal(t, domain.Win32ID("game"), got[0].App)
}

func TestPoll_SnapshotErrorAbortsCycleOnly(t *testing.T) {
	lister := &fakeLister{procs: []domain.ProcessInfo{{PID: 2, ExeName: "game.exe"}}}
	m, _, events := newTestMonitor(lister, &fakeResolver{}, win32Watch("game"))

	require.NoError(t, m.poll())
	drain(events)

	// Snapshot failure: no events, previous state untouched.
	lister.err = errors.New("snapshot unavailable")
	require.Error(t, m.poll())
	assert.Empty(t, drain(events))

	// Next tick succeeds and sees no change, so still no events.
	lister.err = nil
	require.NoError(t, m.poll())
	assert.Empty(t, drain(events))
}

func TestPoll_LiveWatchListFilterOnEmit(t *testing.T) {
	lister := &fakeLister{procs: []domain.ProcessInfo{{PID: 2, ExeName: "game.exe"}}}
	m, reg, events := newTestMonitor(lister, &fakeResolver{}, win32Watch("game"))

	require.NoError(t, m.poll())
	drain(events)

	// The app is removed from the watch list while still running. The
	// next poll computes a Stopped diff (the identifier is no longer
	// accumulated) but the live membership filter suppresses the event.
	reg.Update(nil)
	require.NoError(t, m.poll())
	assert.Empty(t, drain(events))
}

func TestPoll_MultipleTransitionsInOneCycle(t *testing.T) {
	lister := &fakeLister{procs: []domain.ProcessInfo{
		{PID: 1, ExeName: "app1.exe"},
		{PID: 2, ExeName: "app2.exe"},
	}}
	m, _, events := newTestMonitor(lister, &fakeResolver{},
		win32Watch("app1"), win32Watch("app2"), win32Watch("app3"))

	require.NoError(t, m.poll())
	drain(events)

	// app1 stops, app3 starts.
	lister.procs = []domain.ProcessInfo{
		{PID: 2, ExeName: "app2.exe"},
		{PID: 3, ExeName: "app3.exe"},
	}
	require.NoError(t, m.poll())

	got := drain(events)
	require.Len(t, got, 2)
	var started, stopped []domain.AppIdentifier
	for _, ev := range got {
		if ev.Kind == domain.ProcessStarted {
			started = append(started, ev.App)
		} else {
			stopped = append(stopped, ev.App)
		}
	}
	assert.Equal(t, []domain.AppIdentifier{domain.Win32ID("app3")}, started)
	assert.Equal(t, []domain.AppIdentifier{domain.Win32ID("app1")}, stopped)
}

func TestPoll_EstimatedCountConverges(t *testing.T) {
	lister := &fakeLister{}
	m, _, _ := newTestMonitor(lister, &fakeResolver{})

	for i := 0; i < 40; i++ {
		require.NoError(t, m.poll())
	}

	// EMA of an empty process list decays toward zero from the default.
	assert.Less(t, m.estimatedCount, defaultProcessCount/10)
	// The hint passed to the lister tracks the estimate.
	assert.Equal(t, defaultProcessCount, lister.hints[0])
}
