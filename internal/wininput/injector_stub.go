//go:build !windows

package wininput

import "errors"

// ErrUnsupported reports that SendInput is not available on this platform.
var ErrUnsupported = errors.New("wininput: SendInput is only available on Windows")

// NewInjector returns a LogInjector together with ErrUnsupported so callers can decide
// whether a simulated peer is acceptable.
func NewInjector() (Injector, error) {
	return NewLogInjector(nil), ErrUnsupported
}
