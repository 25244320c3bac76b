// Package hdr implements display capability control: enumeration of
// display targets, HDR support/state detection through the two
// versioned DisplayConfig payload shapes, and enable/disable commands.
// It also hosts the external-change watcher that reconciles HDR
// toggles made outside this process.
package hdr

import (
	"fmt"
	"unsafe"
)

// LUID is the locally unique adapter identifier used by the
// DisplayConfig APIs. Field order and sizes are part of the wire
// contract with the OS.
type LUID struct {
	LowPart  uint32
	HighPart int32
}

// Pack folds the LUID into a single comparable value.
func (l LUID) Pack() uint64 {
	return uint64(uint32(l.HighPart))<<32 | uint64(l.LowPart)
}

// UnpackLUID is the inverse of Pack.
func UnpackLUID(v uint64) LUID {
	return LUID{LowPart: uint32(v), HighPart: int32(uint32(v >> 32))}
}

// DISPLAYCONFIG_DEVICE_INFO_TYPE values used by this package.
const (
	deviceInfoGetAdvancedColorInfo  uint32 = 9  // legacy GET (Windows 10 / 11 pre-24H2)
	deviceInfoSetAdvancedColorState uint32 = 10 // legacy SET
	deviceInfoGetAdvancedColorInfo2 uint32 = 15 // 24H2+ GET
	deviceInfoSetHdrState           uint32 = 16 // 24H2+ SET
)

// DISPLAYCONFIG_ADVANCED_COLOR_MODE values (24H2+ activeColorMode field).
const (
	colorModeSDR uint32 = 0
	colorModeWCG uint32 = 1
	colorModeHDR uint32 = 2
)

// DeviceInfoHeader prefixes every DisplayConfigGetDeviceInfo /
// DisplayConfigSetDeviceInfo payload. Size must include the header.
type DeviceInfoHeader struct {
	Type      uint32
	Size      uint32
	AdapterID LUID
	ID        uint32
}

// AdvancedColorInfo is the legacy GET payload
// (DISPLAYCONFIG_GET_ADVANCED_COLOR_INFO), used on Windows 10 and
// Windows 11 before 24H2. Value is a packed status word.
type AdvancedColorInfo struct {
	Header              DeviceInfoHeader
	Value               uint32
	ColorEncoding       uint32
	BitsPerColorChannel uint32
}

// AdvancedColorSupported reports bit 0 of the packed status word.
func (i AdvancedColorInfo) AdvancedColorSupported() bool { return i.Value&0x1 != 0 }

// AdvancedColorEnabled reports bit 1 of the packed status word.
func (i AdvancedColorInfo) AdvancedColorEnabled() bool { return i.Value&0x2 != 0 }

// WideColorEnforced reports bit 2 of the packed status word.
func (i AdvancedColorInfo) WideColorEnforced() bool { return i.Value&0x4 != 0 }

// AdvancedColorForceDisabled reports bit 3 of the packed status word.
func (i AdvancedColorInfo) AdvancedColorForceDisabled() bool { return i.Value&0x8 != 0 }

// AdvancedColorInfo2 is the 24H2+ GET payload
// (DISPLAYCONFIG_GET_ADVANCED_COLOR_INFO_2). Its packed status word
// places identical-purpose bits at different offsets than the legacy
// shape and adds a dedicated HDR bit; masks are never shared between
// the two shapes.
type AdvancedColorInfo2 struct {
	Header              DeviceInfoHeader
	ColorEncoding       uint32
	BitsPerColorChannel uint32
	ActiveColorMode     uint32
	Value               uint32
}

// HighDynamicRangeSupported reports bit 0 of the packed status word.
func (i AdvancedColorInfo2) HighDynamicRangeSupported() bool { return i.Value&0x1 != 0 }

// WideColorGamutSupported reports bit 1 of the packed status word.
func (i AdvancedColorInfo2) WideColorGamutSupported() bool { return i.Value&0x2 != 0 }

// HdrActive reports whether the active color mode is HDR.
func (i AdvancedColorInfo2) HdrActive() bool { return i.ActiveColorMode == colorModeHDR }

// SetAdvancedColorState is the legacy SET payload
// (DISPLAYCONFIG_SET_ADVANCED_COLOR_STATE).
type SetAdvancedColorState struct {
	Header DeviceInfoHeader
	Value  uint32
}

// NewSetAdvancedColorState builds a legacy SET payload for one target.
func NewSetAdvancedColorState(adapter LUID, targetID uint32, enable bool) SetAdvancedColorState {
	s := SetAdvancedColorState{
		Header: DeviceInfoHeader{
			Type:      deviceInfoSetAdvancedColorState,
			Size:      uint32(unsafe.Sizeof(SetAdvancedColorState{})),
			AdapterID: adapter,
			ID:        targetID,
		},
	}
	if enable {
		s.Value = 1
	}
	return s
}

// SetHdrState is the 24H2+ SET payload (DISPLAYCONFIG_SET_HDR_STATE).
type SetHdrState struct {
	Header DeviceInfoHeader
	Value  uint32
}

// NewSetHdrState builds a 24H2+ SET payload for one target.
func NewSetHdrState(adapter LUID, targetID uint32, enable bool) SetHdrState {
	s := SetHdrState{
		Header: DeviceInfoHeader{
			Type:      deviceInfoSetHdrState,
			Size:      uint32(unsafe.Sizeof(SetHdrState{})),
			AdapterID: adapter,
			ID:        targetID,
		},
	}
	if enable {
		s.Value = 1
	}
	return s
}

// Expected payload sizes in bytes. These are part of the wire contract
// with the OS: the set/get calls fail outright when header.Size does
// not match what the OS expects for the payload type.
const (
	sizeDeviceInfoHeader      = 20
	sizeAdvancedColorInfo     = 32
	sizeAdvancedColorInfo2    = 36
	sizeSetAdvancedColorState = 24
	sizeSetHdrState           = 24
)

// ValidateLayouts checks every payload structure against its expected
// byte size. Called once at startup; a mismatch makes HDR control
// unusable and is fatal for this code path.
func ValidateLayouts() error {
	checks := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"DeviceInfoHeader", unsafe.Sizeof(DeviceInfoHeader{}), sizeDeviceInfoHeader},
		{"AdvancedColorInfo", unsafe.Sizeof(AdvancedColorInfo{}), sizeAdvancedColorInfo},
		{"AdvancedColorInfo2", unsafe.Sizeof(AdvancedColorInfo2{}), sizeAdvancedColorInfo2},
		{"SetAdvancedColorState", unsafe.Sizeof(SetAdvancedColorState{}), sizeSetAdvancedColorState},
		{"SetHdrState", unsafe.Sizeof(SetHdrState{}), sizeSetHdrState},
	}
	for _, c := range checks {
		if c.got != c.want {
			return fmt.Errorf("payload layout mismatch: %s is %d bytes, OS contract requires %d",
				c.name, c.got, c.want)
		}
	}
	return nil
}
