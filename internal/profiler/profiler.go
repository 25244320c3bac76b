// Package profiler provides process-wide runtime counters as an
// explicit service with an initialize-once lifecycle. Counters are
// atomic; there is no ad hoc shared mutable state.
package profiler

import (
	"sync"
	"sync/atomic"
	"time"
)

// Profiler accumulates daemon activity counters. All methods are safe
// for concurrent use from the polling and event loops.
type Profiler struct {
	startedAt time.Time

	pollCycles         atomic.Uint64
	processEvents      atomic.Uint64
	hdrToggles         atomic.Uint64
	externalChanges    atomic.Uint64
	recheckExhaustions atomic.Uint64
}

// Counters is a point-in-time copy of the profiler's counters.
type Counters struct {
	Uptime             time.Duration
	PollCycles         uint64
	ProcessEvents      uint64
	HdrToggles         uint64
	ExternalChanges    uint64
	RecheckExhaustions uint64
}

var (
	once     sync.Once
	instance *Profiler
)

// Get returns the process-wide profiler, creating it on first use.
func Get() *Profiler {
	once.Do(func() {
		instance = &Profiler{startedAt: time.Now()}
	})
	return instance
}

// RecordPollCycle counts one completed process-snapshot poll.
func (p *Profiler) RecordPollCycle() { p.pollCycles.Add(1) }

// RecordProcessEvent counts one emitted Started/Stopped event.
func (p *Profiler) RecordProcessEvent() { p.processEvents.Add(1) }

// RecordHdrToggle counts one enable/disable command issued by the
// coordination controller.
func (p *Profiler) RecordHdrToggle() { p.hdrToggles.Add(1) }

// RecordExternalChange counts one externally observed HDR change.
func (p *Profiler) RecordExternalChange() { p.externalChanges.Add(1) }

// RecordRecheckExhaustion counts one recheck budget that ran out
// without detecting a change.
func (p *Profiler) RecordRecheckExhaustion() { p.recheckExhaustions.Add(1) }

// Snapshot returns a consistent-enough copy of all counters for
// status output.
func (p *Profiler) Snapshot() Counters {
	return Counters{
		Uptime:             time.Since(p.startedAt),
		PollCycles:         p.pollCycles.Load(),
		ProcessEvents:      p.processEvents.Load(),
		HdrToggles:         p.hdrToggles.Load(),
		ExternalChanges:    p.externalChanges.Load(),
		RecheckExhaustions: p.recheckExhaustions.Load(),
	}
}
