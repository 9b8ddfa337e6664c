//go:build !windows

package monitor

// ListMonitors returns ErrUnsupported on non-Windows platforms.
func ListMonitors() ([]Monitor, error) {
	return nil, ErrUnsupported
}
