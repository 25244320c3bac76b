//go:build windows

package identity

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// appmodelErrNoPackage is returned by GetPackageFullName for plain
// Win32 processes that have no package identity (APPMODEL_ERROR_NO_PACKAGE).
const appmodelErrNoPackage = 15700

var (
	kernel32               = windows.NewLazySystemDLL("kernel32.dll")
	procGetPackageFullName = kernel32.NewProc("GetPackageFullName")
)

// queryPackageFullName asks the OS whether the process belongs to a
// packaged application and, if so, returns its package full name.
//
// The handle is opened with the minimum rights needed and released on
// every exit path.
func queryPackageFullName(pid int32) (string, bool, error) {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return "", false, fmt.Errorf("open process %d: %w", pid, err)
	}
	defer windows.CloseHandle(handle)

	// Two-phase call: first ask for the required buffer length, then
	// fetch the name into an exactly sized buffer.
	var length uint32
	ret, _, _ := procGetPackageFullName.Call(uintptr(handle), uintptr(unsafe.Pointer(&length)), 0)
	switch ret {
	case appmodelErrNoPackage:
		return "", false, nil
	case uintptr(windows.ERROR_INSUFFICIENT_BUFFER), uintptr(windows.ERROR_SUCCESS):
	default:
		return "", false, fmt.Errorf("GetPackageFullName length query for pid %d: code %d", pid, ret)
	}
	if length == 0 {
		return "", false, nil
	}

	buf := make([]uint16, length)
	ret, _, _ = procGetPackageFullName.Call(uintptr(handle), uintptr(unsafe.Pointer(&length)), uintptr(unsafe.Pointer(&buf[0])))
	if ret == appmodelErrNoPackage {
		return "", false, nil
	}
	if ret != uintptr(windows.ERROR_SUCCESS) {
		return "", false, fmt.Errorf("GetPackageFullName for pid %d: code %d", pid, ret)
	}

	return windows.UTF16ToString(buf), true, nil
}
