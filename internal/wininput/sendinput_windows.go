//go:build windows

package wininput

import (
	"fmt"
	"unsafe"

	"github.com/lxn/win"
)

// WinInjector injects mouse and keyboard input using WinAPI.
type WinInjector struct{}

// NewInjector returns a Windows input injector.
func NewInjector() (Injector, error) {
	return &WinInjector{}, nil
}

// keyboardInput pads KEYBD_INPUT to the size of the INPUT union.
type keyboardInput struct {
	win.KEYBD_INPUT
	_ [unsafe.Sizeof(win.MOUSE_INPUT{}) - unsafe.Sizeof(win.KEYBD_INPUT{})]byte
}

// inputSize is sizeof(INPUT), the largest union member.
var inputSize = int32(unsafe.Sizeof(win.MOUSE_INPUT{}))

// sendMouseInput dispatches a single mouse input event.
func sendMouseInput(flags uint32, dx, dy int32, data uint32) error {
	input := win.MOUSE_INPUT{
		Type: win.INPUT_MOUSE,
		Mi: win.MOUSEINPUT{
			Dx:        dx,
			Dy:        dy,
			MouseData: data,
			DwFlags:   flags,
		},
	}
	if win.SendInput(1, unsafe.Pointer(&input), inputSize) != 1 {
		return fmt.Errorf("SendInput mouse: error %d", win.GetLastError())
	}
	return nil
}

// sendKeyboardInput dispatches a single keyboard input event.
func sendKeyboardInput(key win.KEYBDINPUT) error {
	var input keyboardInput
	input.Type = win.INPUT_KEYBOARD
	input.Ki = key
	if win.SendInput(1, unsafe.Pointer(&input), inputSize) != 1 {
		return fmt.Errorf("SendInput keyboard: error %d", win.GetLastError())
	}
	return nil
}
