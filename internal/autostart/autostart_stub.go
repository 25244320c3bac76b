//go:build !windows

package autostart

import "errors"

var errUnsupported = errors.New("autostart requires Windows")

func Enable(string) error    { return errUnsupported }
func Disable() error         { return errUnsupported }
func Enabled() (bool, error) { return false, errUnsupported }
