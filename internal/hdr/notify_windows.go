//go:build windows

package hdr

import (
	"fmt"
	"runtime"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"
)

// Window messages consumed by the notification window.
const (
	wmDestroy       = 0x0002
	wmSettingChange = 0x001A
	wmDisplayChange = 0x007E
)

const wsOverlappedWindow = 0x00CF0000

type wndClass struct {
	Style      uint32
	WndProc    uintptr
	ClsExtra   int32
	WndExtra   int32
	Instance   windows.Handle
	Icon       windows.Handle
	Cursor     windows.Handle
	Background windows.Handle
	MenuName   *uint16
	ClassName  *uint16
}

type point struct {
	X int32
	Y int32
}

type msg struct {
	HWnd    windows.Handle
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      point
}

var (
	procRegisterClassW   = user32.NewProc("RegisterClassW")
	procCreateWindowExW  = user32.NewProc("CreateWindowExW")
	procDefWindowProcW   = user32.NewProc("DefWindowProcW")
	procGetMessageW      = user32.NewProc("GetMessageW")
	procTranslateMessage = user32.NewProc("TranslateMessage")
	procDispatchMessageW = user32.NewProc("DispatchMessageW")
	procPostQuitMessage  = user32.NewProc("PostQuitMessage")
)

// StartNotificationPump creates a hidden window on a dedicated OS
// thread and runs its message loop for the process lifetime. The
// window exists only to receive WM_DISPLAYCHANGE and WM_SETTINGCHANGE
// broadcasts, which message-only windows do not get; it is parked far
// off-screen and never shown.
func (w *Watcher) StartNotificationPump() {
	go func() {
		// The window and its message loop must live on one thread.
		runtime.LockOSThread()
		if err := w.runMessagePump(); err != nil {
			w.logger.Error("notification window failed", zap.Error(err))
		}
	}()
}

func (w *Watcher) runMessagePump() error {
	wndProc := windows.NewCallback(func(hwnd windows.Handle, message uint32, wparam, lparam uintptr) uintptr {
		switch message {
		case wmDisplayChange:
			w.Notify(NoteDisplayChange)
			return 0
		case wmSettingChange:
			w.Notify(NoteSettingChange)
			return 0
		case wmDestroy:
			procPostQuitMessage.Call(0)
			return 0
		}
		ret, _, _ := procDefWindowProcW.Call(uintptr(hwnd), uintptr(message), wparam, lparam)
		return ret
	})

	instance, err := windows.GetModuleHandle(nil)
	if err != nil {
		return fmt.Errorf("GetModuleHandle: %w", err)
	}

	className, err := windows.UTF16PtrFromString("hdrd_notification_window")
	if err != nil {
		return err
	}
	wc := wndClass{
		WndProc:   wndProc,
		Instance:  instance,
		ClassName: className,
	}
	if atom, _, callErr := procRegisterClassW.Call(uintptr(unsafe.Pointer(&wc))); atom == 0 {
		return fmt.Errorf("RegisterClassW: %w", callErr)
	}

	// Off-screen coordinates keep the window out of sight without the
	// message-only flag that would cut off broadcast messages.
	const offscreen = -32000
	hwnd, _, callErr := procCreateWindowExW.Call(
		0,
		uintptr(unsafe.Pointer(className)),
		uintptr(unsafe.Pointer(className)),
		wsOverlappedWindow,
		uintptr(int32(offscreen)), uintptr(int32(offscreen)),
		1, 1,
		0, 0,
		uintptr(instance),
		0,
	)
	if hwnd == 0 {
		return fmt.Errorf("CreateWindowExW: %w", callErr)
	}
	w.logger.Debug("notification window created")

	var m msg
	for {
		ret, _, callErr := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		switch int32(ret) {
		case 0: // WM_QUIT
			return nil
		case -1:
			return fmt.Errorf("GetMessageW: %w", callErr)
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&m)))
	}
}
