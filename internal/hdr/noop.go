package hdr

import "hdrd/internal/domain"

// NoopController is a DisplayController with no displays. The daemon
// runs on it in degraded mode: monitoring and coordination proceed,
// every set is a no-op.
type NoopController struct{}

var _ domain.DisplayController = NoopController{}

func (NoopController) Targets() []domain.DisplayTarget              { return nil }
func (NoopController) Refresh() ([]domain.DisplayTarget, error)     { return nil, nil }
func (NoopController) IsEnabled(domain.DisplayTarget) (bool, error) { return false, nil }
func (NoopController) SetGlobal(bool) []domain.SetResult            { return nil }
func (NoopController) AnyEnabled() bool                             { return false }
func (NoopController) CapableCount() int                            { return 0 }
