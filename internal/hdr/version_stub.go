//go:build !windows

package hdr

import "errors"

func buildNumber() (uint32, error) {
	return 0, errors.New("OS build number unavailable on this platform")
}
