//go:build windows

package wininput

import "github.com/lxn/win"

// withControl runs fn while the Ctrl key is held.
func withControl(fn func() error) error {
	if err := sendKeyboardInput(win.KEYBDINPUT{WVk: win.VK_CONTROL}); err != nil {
		return err
	}
	err := fn()
	if upErr := sendKeyboardInput(win.KEYBDINPUT{WVk: win.VK_CONTROL, DwFlags: win.KEYEVENTF_KEYUP}); err == nil {
		err = upErr
	}
	return err
}
