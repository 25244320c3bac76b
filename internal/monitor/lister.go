// Package monitor implements the polling process-presence monitor that
// resolves running processes to application identities and emits
// lifecycle events.
package monitor

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/process"

	"hdrd/internal/domain"
)

// GopsutilLister implements domain.ProcessLister using gopsutil.
type GopsutilLister struct{}

// NewProcessLister creates the OS-backed process lister.
func NewProcessLister() domain.ProcessLister {
	return &GopsutilLister{}
}

// Snapshot returns every currently running process. A single process
// whose name cannot be read (usually because it exited mid-snapshot)
// is skipped; only failure to take the snapshot itself is an error.
func (l *GopsutilLister) Snapshot(capacityHint int) ([]domain.ProcessInfo, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("process snapshot: %w", err)
	}

	if capacityHint < len(procs) {
		capacityHint = len(procs)
	}
	out := make([]domain.ProcessInfo, 0, capacityHint)
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue // Process may have exited
		}
		out = append(out, domain.ProcessInfo{PID: p.Pid, ExeName: name})
	}
	return out, nil
}

var _ domain.ProcessLister = (*GopsutilLister)(nil)
