//go:build windows

package hdr

import "golang.org/x/sys/windows"

// buildNumber reads the true OS build via RtlGetVersion, which is not
// subject to the compatibility shims that affect GetVersionEx.
func buildNumber() (uint32, error) {
	info := windows.RtlGetVersion()
	return info.BuildNumber, nil
}
