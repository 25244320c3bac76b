//go:build windows

package hdr

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

const qdcOnlyActivePaths uint32 = 2

// DISPLAYCONFIG_PATH_INFO and DISPLAYCONFIG_MODE_INFO layouts. Only the
// target adapter/id fields are consumed; the rest exist to keep the
// array stride correct (72 and 64 bytes respectively).

type displayConfigRational struct {
	Numerator   uint32
	Denominator uint32
}

type displayConfigPathSourceInfo struct {
	AdapterID   LUID
	ID          uint32
	ModeInfoIdx uint32
	StatusFlags uint32
}

type displayConfigPathTargetInfo struct {
	AdapterID        LUID
	ID               uint32
	ModeInfoIdx      uint32
	OutputTechnology uint32
	Rotation         uint32
	Scaling          uint32
	RefreshRate      displayConfigRational
	ScanLineOrdering uint32
	TargetAvailable  uint32
	StatusFlags      uint32
}

type displayConfigPathInfo struct {
	SourceInfo displayConfigPathSourceInfo
	TargetInfo displayConfigPathTargetInfo
	Flags      uint32
}

type displayConfigModeInfo struct {
	InfoType  uint32
	ID        uint32
	AdapterID LUID
	// Union payload; DISPLAYCONFIG_TARGET_MODE is the largest member.
	Data [48]byte
}

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procGetDisplayConfigBufferSizes = user32.NewProc("GetDisplayConfigBufferSizes")
	procQueryDisplayConfig          = user32.NewProc("QueryDisplayConfig")
	procDisplayConfigGetDeviceInfo  = user32.NewProc("DisplayConfigGetDeviceInfo")
	procDisplayConfigSetDeviceInfo  = user32.NewProc("DisplayConfigSetDeviceInfo")
)

// displayConfigAPI is the production deviceAPI over user32.
type displayConfigAPI struct{}

func newDeviceAPI() deviceAPI { return displayConfigAPI{} }

func (displayConfigAPI) activePaths() ([]pathTarget, error) {
	// The path count can change between sizing and querying; retry on
	// ERROR_INSUFFICIENT_BUFFER.
	for attempt := 0; attempt < 3; attempt++ {
		var pathCount, modeCount uint32
		rc, _, _ := procGetDisplayConfigBufferSizes.Call(
			uintptr(qdcOnlyActivePaths),
			uintptr(unsafe.Pointer(&pathCount)),
			uintptr(unsafe.Pointer(&modeCount)),
		)
		if rc != 0 {
			return nil, fmt.Errorf("GetDisplayConfigBufferSizes: %w", syscall.Errno(rc))
		}
		if pathCount == 0 {
			return nil, nil
		}

		paths := make([]displayConfigPathInfo, pathCount)
		modes := make([]displayConfigModeInfo, modeCount)
		rc, _, _ = procQueryDisplayConfig.Call(
			uintptr(qdcOnlyActivePaths),
			uintptr(unsafe.Pointer(&pathCount)),
			uintptr(unsafe.Pointer(&paths[0])),
			uintptr(unsafe.Pointer(&modeCount)),
			uintptr(unsafe.Pointer(&modes[0])),
			0,
		)
		if syscall.Errno(rc) == windows.ERROR_INSUFFICIENT_BUFFER {
			continue
		}
		if rc != 0 {
			return nil, fmt.Errorf("QueryDisplayConfig: %w", syscall.Errno(rc))
		}

		out := make([]pathTarget, 0, pathCount)
		for _, p := range paths[:pathCount] {
			out = append(out, pathTarget{adapter: p.TargetInfo.AdapterID, id: p.TargetInfo.ID})
		}
		return out, nil
	}
	return nil, fmt.Errorf("QueryDisplayConfig: path count kept changing")
}

func (displayConfigAPI) getColorInfo(adapter LUID, id uint32) (AdvancedColorInfo, error) {
	info := AdvancedColorInfo{Header: DeviceInfoHeader{
		Type:      deviceInfoGetAdvancedColorInfo,
		Size:      sizeAdvancedColorInfo,
		AdapterID: adapter,
		ID:        id,
	}}
	rc, _, _ := procDisplayConfigGetDeviceInfo.Call(uintptr(unsafe.Pointer(&info)))
	if rc != 0 {
		return AdvancedColorInfo{}, fmt.Errorf("DisplayConfigGetDeviceInfo(advanced color): %w", syscall.Errno(rc))
	}
	return info, nil
}

func (displayConfigAPI) getColorInfo2(adapter LUID, id uint32) (AdvancedColorInfo2, error) {
	info := AdvancedColorInfo2{Header: DeviceInfoHeader{
		Type:      deviceInfoGetAdvancedColorInfo2,
		Size:      sizeAdvancedColorInfo2,
		AdapterID: adapter,
		ID:        id,
	}}
	rc, _, _ := procDisplayConfigGetDeviceInfo.Call(uintptr(unsafe.Pointer(&info)))
	if rc != 0 {
		return AdvancedColorInfo2{}, fmt.Errorf("DisplayConfigGetDeviceInfo(advanced color 2): %w", syscall.Errno(rc))
	}
	return info, nil
}

func (displayConfigAPI) setColorState(s SetAdvancedColorState) error {
	rc, _, _ := procDisplayConfigSetDeviceInfo.Call(uintptr(unsafe.Pointer(&s)))
	if rc != 0 {
		return fmt.Errorf("DisplayConfigSetDeviceInfo(advanced color state): %w", syscall.Errno(rc))
	}
	return nil
}

func (displayConfigAPI) setHdrState(s SetHdrState) error {
	rc, _, _ := procDisplayConfigSetDeviceInfo.Call(uintptr(unsafe.Pointer(&s)))
	if rc != 0 {
		return fmt.Errorf("DisplayConfigSetDeviceInfo(hdr state): %w", syscall.Errno(rc))
	}
	return nil
}
