//go:build !windows

package hdr

import "errors"

var errUnsupportedPlatform = errors.New("display control requires Windows")

// stubAPI keeps the package compiling on non-Windows hosts; every call
// fails, so NewController surfaces the platform error at startup.
type stubAPI struct{}

func newDeviceAPI() deviceAPI { return stubAPI{} }

func (stubAPI) activePaths() ([]pathTarget, error) { return nil, errUnsupportedPlatform }

func (stubAPI) getColorInfo(LUID, uint32) (AdvancedColorInfo, error) {
	return AdvancedColorInfo{}, errUnsupportedPlatform
}

func (stubAPI) getColorInfo2(LUID, uint32) (AdvancedColorInfo2, error) {
	return AdvancedColorInfo2{}, errUnsupportedPlatform
}

func (stubAPI) setColorState(SetAdvancedColorState) error { return errUnsupportedPlatform }

func (stubAPI) setHdrState(SetHdrState) error { return errUnsupportedPlatform }
