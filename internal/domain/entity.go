// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// AppKind distinguishes the two application models Windows can run.
type AppKind uint8

const (
	// KindWin32 is a classic desktop application, identified by its
	// executable filename stem.
	KindWin32 AppKind = iota
	// KindUWP is a packaged (Store) application, identified by its
	// package family name.
	KindUWP
)

// AppIdentifier is the stable identity of a monitored application.
//
// Win32 identifiers are lowercased at construction so matching is
// case-insensitive by structure, not by comparison policy. UWP family
// names are kept byte-exact and compare case-sensitively. The zero
// value is not a valid identifier.
type AppIdentifier struct {
	kind AppKind
	name string
}

// Win32ID builds an identifier from an executable filename stem.
// The stem is lowercased here, once, so every later comparison is a
// plain equality check.
func Win32ID(stem string) AppIdentifier {
	return AppIdentifier{kind: KindWin32, name: strings.ToLower(stem)}
}

// UWPID builds an identifier from a package family name. Family names
// are stable across package updates and compare byte-exact.
func UWPID(familyName string) AppIdentifier {
	return AppIdentifier{kind: KindUWP, name: familyName}
}

// Kind returns which application model this identifier belongs to.
func (a AppIdentifier) Kind() AppKind { return a.kind }

// Name returns the identity payload: the lowercase executable stem for
// Win32, the package family name for UWP.
func (a AppIdentifier) Name() string { return a.name }

// IsZero reports whether the identifier was never constructed.
func (a AppIdentifier) IsZero() bool { return a.name == "" }

func (a AppIdentifier) String() string {
	if a.kind == KindUWP {
		return "uwp:" + a.name
	}
	return "win32:" + a.name
}

// ProcessEventKind is the lifecycle transition a process event reports.
type ProcessEventKind uint8

const (
	// ProcessStarted means a monitored application appeared in the
	// process snapshot.
	ProcessStarted ProcessEventKind = iota
	// ProcessStopped means a monitored application left the snapshot.
	ProcessStopped
)

// ProcessEvent is emitted by the process monitor when a monitored
// application starts or stops. Ephemeral; lives only on the channel.
type ProcessEvent struct {
	Kind ProcessEventKind
	App  AppIdentifier
}

func (e ProcessEvent) String() string {
	if e.Kind == ProcessStarted {
		return fmt.Sprintf("started(%s)", e.App)
	}
	return fmt.Sprintf("stopped(%s)", e.App)
}

// HdrEventKind classifies events from the external-change watcher.
type HdrEventKind uint8

const (
	// HdrEnabled means HDR was switched on outside this process.
	HdrEnabled HdrEventKind = iota
	// HdrDisabled means HDR was switched off outside this process.
	HdrDisabled
	// DisplayConfigChanged means the set of attached displays changed.
	DisplayConfigChanged
)

// HdrStateEvent reports an externally observed HDR or display change.
// For DisplayConfigChanged, CapableDisplays carries the number of
// HDR-capable displays after re-enumeration.
type HdrStateEvent struct {
	Kind            HdrEventKind
	CapableDisplays int
}

// DisplayTarget identifies one display output on one adapter.
//
// A target snapshot is fully replaced on every enumeration; SupportsHDR
// is computed once at enumeration time and cached for the life of that
// snapshot.
type DisplayTarget struct {
	// AdapterID is the adapter LUID packed as high<<32 | low.
	AdapterID uint64
	// TargetID is the display output identifier on that adapter.
	TargetID uint32
	// SupportsHDR is the capability detected when this snapshot was taken.
	SupportsHDR bool
}

func (t DisplayTarget) String() string {
	return fmt.Sprintf("display(adapter=%#x target=%d hdr=%t)", t.AdapterID, t.TargetID, t.SupportsHDR)
}

// SetResult records the outcome of one per-display set operation.
type SetResult struct {
	Target DisplayTarget
	Err    error
}

// ProcessInfo is one entry of a process snapshot: the PID and the bare
// executable filename as the OS snapshot exposed it.
type ProcessInfo struct {
	PID     int32
	ExeName string
}

// MonitoredApp is one configured application entry. Exactly one of
// ProcessName (Win32) or PackageFamilyName (UWP) is meaningful,
// selected by Kind.
type MonitoredApp struct {
	ID                uuid.UUID `json:"id"`
	Kind              AppKind   `json:"kind"`
	DisplayName       string    `json:"display_name"`
	ExePath           string    `json:"exe_path,omitempty"`
	ProcessName       string    `json:"process_name,omitempty"`
	PackageFamilyName string    `json:"package_family_name,omitempty"`
	AppID             string    `json:"app_id,omitempty"`
	Enabled           bool      `json:"enabled"`
}

// Identifier derives the stable identity used for process matching.
func (m MonitoredApp) Identifier() AppIdentifier {
	if m.Kind == KindUWP {
		return UWPID(m.PackageFamilyName)
	}
	return Win32ID(m.ProcessName)
}

// WatchState is an immutable snapshot of the watch list.
//
// Identifiers is always exactly the identifier set derived from Apps;
// the two are built together and replaced together, so a reader never
// observes a list/set pair from different configuration versions.
type WatchState struct {
	Apps        []MonitoredApp
	Identifiers map[AppIdentifier]struct{}

	hasUWP bool
}

// NewWatchState derives a consistent snapshot from the given entries.
// Callers pass only currently-enabled entries.
func NewWatchState(apps []MonitoredApp) *WatchState {
	ws := &WatchState{
		Apps:        apps,
		Identifiers: make(map[AppIdentifier]struct{}, len(apps)),
	}
	for _, app := range apps {
		id := app.Identifier()
		ws.Identifiers[id] = struct{}{}
		if id.Kind() == KindUWP {
			ws.hasUWP = true
		}
	}
	return ws
}

// Contains reports whether the identifier is currently watched.
func (w *WatchState) Contains(id AppIdentifier) bool {
	_, ok := w.Identifiers[id]
	return ok
}

// HasUWP reports whether any watched entry is a packaged application.
// The process monitor uses this to skip package queries entirely when
// only Win32 apps are watched.
func (w *WatchState) HasUWP() bool { return w.hasUWP }

// DisplayNameOf returns the configured display name for an identifier,
// falling back to the raw identifier payload for unknown entries.
func (w *WatchState) DisplayNameOf(id AppIdentifier) string {
	for _, app := range w.Apps {
		if app.Identifier() == id {
			return app.DisplayName
		}
	}
	return id.Name()
}

// AppState is the snapshot published to the presentation layer after
// every controller transition.
type AppState struct {
	// HdrEnabled is the controller's current view of HDR state.
	HdrEnabled bool
	// ActiveApps are display names of monitored apps currently running.
	ActiveApps []string
	// HdrBecameAvailable is a one-shot flag set when display capability
	// flips from none to available. Cleared once published.
	HdrBecameAvailable bool
	// NoHdrAtStartup is a one-shot flag set when startup enumeration
	// found no HDR-capable display. Cleared once published.
	NoHdrAtStartup bool
	// LastEvent is a short human-readable description of the transition.
	LastEvent string
}
