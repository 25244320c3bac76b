//go:build windows

package instance

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// Session-local name: one daemon per logon session, not per machine.
const mutexName = "hdrd-single-instance"

// Acquire takes the single-instance mutex. The returned release is
// called at shutdown; in practice process exit also frees it.
func Acquire() (func(), error) {
	name, err := windows.UTF16PtrFromString(mutexName)
	if err != nil {
		return nil, err
	}
	handle, err := windows.CreateMutex(nil, false, name)
	if err == windows.ERROR_ALREADY_EXISTS {
		if handle != 0 {
			windows.CloseHandle(handle)
		}
		return nil, ErrAlreadyRunning
	}
	if err != nil {
		return nil, fmt.Errorf("create instance mutex: %w", err)
	}
	return func() { windows.CloseHandle(handle) }, nil
}
