package hdr

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"hdrd/internal/domain"
)

// settleDelay gives the display pipeline time to apply a state change
// before the next operation touches it.
const settleDelay = 100 * time.Millisecond

// pathTarget is one active display path from enumeration.
type pathTarget struct {
	adapter LUID
	id      uint32
}

// deviceAPI is the seam between the controller and the OS DisplayConfig
// calls, so state logic is testable without a display.
type deviceAPI interface {
	activePaths() ([]pathTarget, error)
	getColorInfo(adapter LUID, id uint32) (AdvancedColorInfo, error)
	getColorInfo2(adapter LUID, id uint32) (AdvancedColorInfo2, error)
	setColorState(s SetAdvancedColorState) error
	setHdrState(s SetHdrState) error
}

// Controller implements domain.DisplayController on top of the
// DisplayConfig device-info calls, selecting payload shape by OS
// version with per-call fallback from the newer shape to the legacy
// one.
type Controller struct {
	version Version
	api     deviceAPI
	settle  time.Duration
	logger  *zap.Logger

	mu    sync.RWMutex
	cache []domain.DisplayTarget
}

var _ domain.DisplayController = (*Controller)(nil)

// NewController validates payload layouts, detects the OS version and
// performs the initial display enumeration. Any of those failing means
// HDR control is unusable; the caller decides whether to run degraded.
func NewController(logger *zap.Logger) (*Controller, error) {
	if err := ValidateLayouts(); err != nil {
		return nil, err
	}
	c := &Controller{
		version: DetectVersion(logger),
		api:     newDeviceAPI(),
		settle:  settleDelay,
		logger:  logger,
	}
	targets, err := c.Refresh()
	if err != nil {
		return nil, fmt.Errorf("initial display enumeration: %w", err)
	}
	logger.Info("display enumeration complete",
		zap.Int("displays", len(targets)),
		zap.Int("hdrCapable", c.CapableCount()))
	return c, nil
}

// Targets returns the cached snapshot from the last enumeration.
func (c *Controller) Targets() []domain.DisplayTarget {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.DisplayTarget, len(c.cache))
	copy(out, c.cache)
	return out
}

// Refresh re-enumerates active display paths and wholesale replaces the
// cached snapshot. Capability is probed once per target here and reused
// for the snapshot's lifetime.
func (c *Controller) Refresh() ([]domain.DisplayTarget, error) {
	paths, err := c.api.activePaths()
	if err != nil {
		return nil, fmt.Errorf("query active display paths: %w", err)
	}

	targets := make([]domain.DisplayTarget, 0, len(paths))
	for _, p := range paths {
		targets = append(targets, domain.DisplayTarget{
			AdapterID:   p.adapter.Pack(),
			TargetID:    p.id,
			SupportsHDR: c.isSupported(p.adapter, p.id),
		})
	}

	c.mu.Lock()
	c.cache = targets
	c.mu.Unlock()
	return targets, nil
}

// isSupported probes HDR capability for one target. On 24H2+ the newer
// payload is tried first; if the OS rejects it the legacy payload
// decides.
func (c *Controller) isSupported(adapter LUID, id uint32) bool {
	if c.version.UsesHdrState() {
		info2, err := c.api.getColorInfo2(adapter, id)
		if err == nil {
			return info2.HighDynamicRangeSupported()
		}
		c.logger.Debug("advanced color info 2 query failed, falling back to legacy",
			zap.Uint32("target", id), zap.Error(err))
	}
	info, err := c.api.getColorInfo(adapter, id)
	if err != nil {
		c.logger.Warn("advanced color info query failed",
			zap.Uint32("target", id), zap.Error(err))
		return false
	}
	// A panel that only enforces wide color gamut advertises advanced
	// color without being HDR-togglable.
	return info.AdvancedColorSupported() && !info.WideColorEnforced()
}

// IsEnabled reports whether HDR is currently active on a target,
// querying the OS rather than any cached state.
func (c *Controller) IsEnabled(t domain.DisplayTarget) (bool, error) {
	adapter := UnpackLUID(t.AdapterID)
	if c.version.UsesHdrState() {
		info2, err := c.api.getColorInfo2(adapter, t.TargetID)
		if err == nil {
			return info2.HdrActive(), nil
		}
		c.logger.Debug("advanced color info 2 query failed, falling back to legacy",
			zap.Uint32("target", t.TargetID), zap.Error(err))
	}
	info, err := c.api.getColorInfo(adapter, t.TargetID)
	if err != nil {
		return false, fmt.Errorf("query color state for target %d: %w", t.TargetID, err)
	}
	return info.AdvancedColorSupported() && info.AdvancedColorEnabled() && !info.WideColorEnforced(), nil
}

// setState issues one enable/disable command, then waits briefly so the
// display pipeline settles before the next operation.
func (c *Controller) setState(t domain.DisplayTarget, enable bool) error {
	adapter := UnpackLUID(t.AdapterID)
	var err error
	if c.version.UsesHdrState() {
		err = c.api.setHdrState(NewSetHdrState(adapter, t.TargetID, enable))
	} else {
		err = c.api.setColorState(NewSetAdvancedColorState(adapter, t.TargetID, enable))
	}
	if err != nil {
		return err
	}
	if c.settle > 0 {
		time.Sleep(c.settle)
	}
	return nil
}

// SetGlobal applies the requested state to every HDR-capable target in
// the cached snapshot. Unsupported targets are omitted entirely; one
// display's failure never prevents attempting the rest.
func (c *Controller) SetGlobal(enable bool) []domain.SetResult {
	targets := c.Targets()

	results := make([]domain.SetResult, 0, len(targets))
	for _, t := range targets {
		if !t.SupportsHDR {
			continue
		}
		err := c.setState(t, enable)
		if err != nil {
			c.logger.Error("set HDR state failed",
				zap.Stringer("target", t),
				zap.Bool("enable", enable),
				zap.Error(err))
		} else {
			c.logger.Info("set HDR state",
				zap.Stringer("target", t),
				zap.Bool("enable", enable))
		}
		results = append(results, domain.SetResult{Target: t, Err: err})
	}
	return results
}

// AnyEnabled reports whether HDR is active on any capable display.
// Per-display query failures count as not enabled.
func (c *Controller) AnyEnabled() bool {
	for _, t := range c.Targets() {
		if !t.SupportsHDR {
			continue
		}
		enabled, err := c.IsEnabled(t)
		if err != nil {
			c.logger.Debug("HDR state query failed", zap.Stringer("target", t), zap.Error(err))
			continue
		}
		if enabled {
			return true
		}
	}
	return false
}

// CapableCount returns the number of HDR-capable displays in the
// current snapshot.
func (c *Controller) CapableCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, t := range c.cache {
		if t.SupportsHDR {
			n++
		}
	}
	return n
}
