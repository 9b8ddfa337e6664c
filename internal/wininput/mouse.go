//go:build windows

package wininput

import "github.com/lxn/win"

// wheelDelta is one wheel notch.
const wheelDelta = 120

// virtualDesktop reads the current virtual screen bounds.
func virtualDesktop() desktop {
	return desktop{
		X: int(win.GetSystemMetrics(win.SM_XVIRTUALSCREEN)),
		Y: int(win.GetSystemMetrics(win.SM_YVIRTUALSCREEN)),
		W: int(win.GetSystemMetrics(win.SM_CXVIRTUALSCREEN)),
		H: int(win.GetSystemMetrics(win.SM_CYVIRTUALSCREEN)),
	}
}

// MoveAbs moves the cursor to a virtual-desktop pixel. SetCursorPos is tried when
// SendInput is blocked, for example by UIPI.
func (w *WinInjector) MoveAbs(x, y int) error {
	ax, ay := virtualDesktop().absolute(x, y)
	err := sendMouseInput(win.MOUSEEVENTF_MOVE|win.MOUSEEVENTF_ABSOLUTE|win.MOUSEEVENTF_VIRTUALDESK, ax, ay, 0)
	if err != nil && win.SetCursorPos(int32(x), int32(y)) {
		return nil
	}
	return err
}

// LeftDown presses the left mouse button.
func (w *WinInjector) LeftDown() error { return button(win.MOUSEEVENTF_LEFTDOWN) }

// LeftUp releases the left mouse button.
func (w *WinInjector) LeftUp() error { return button(win.MOUSEEVENTF_LEFTUP) }

// ClickAt moves to (x,y) and clicks the left button.
func (w *WinInjector) ClickAt(x, y int) error {
	if err := w.MoveAbs(x, y); err != nil {
		return err
	}
	if err := button(win.MOUSEEVENTF_LEFTDOWN); err != nil {
		return err
	}
	return button(win.MOUSEEVENTF_LEFTUP)
}

// Zoom turns the wheel by notches with Ctrl held.
func (w *WinInjector) Zoom(notches int) error {
	if notches == 0 {
		return nil
	}
	return withControl(func() error {
		return sendMouseInput(win.MOUSEEVENTF_WHEEL, 0, 0, uint32(int32(notches*wheelDelta)))
	})
}

// button sends a button event at the current cursor position.
func button(flags uint32) error {
	return sendMouseInput(flags, 0, 0, 0)
}
