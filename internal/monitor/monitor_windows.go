//go:build windows

package monitor

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
	"syscall"
	"unsafe"

	"github.com/lxn/win"
)

var (
	// enumMu guards enumerated, which the shared callback appends to.
	enumMu     sync.Mutex
	enumerated []Monitor
	// enumProc is created once; Windows callbacks cannot be released.
	enumProc = syscall.NewCallback(func(h win.HMONITOR, _ win.HDC, _ *win.RECT, _ uintptr) uintptr {
		if m, ok := describeMonitor(h); ok {
			enumerated = append(enumerated, m)
		}
		return 1
	})
)

// ListMonitors enumerates attached displays. Indexes are 1-based and ordered
// left to right, then top to bottom, so MONITOR_INDEX stays stable across reboots.
func ListMonitors() ([]Monitor, error) {
	enumMu.Lock()
	enumerated = nil
	ok := win.EnumDisplayMonitors(0, nil, enumProc, 0)
	list := enumerated
	enumerated = nil
	enumMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("EnumDisplayMonitors failed: %w", syscall.GetLastError())
	}
	if len(list) == 0 {
		return nil, errors.New("monitor: no displays attached")
	}
	slices.SortFunc(list, func(a, b Monitor) int {
		return cmp.Or(cmp.Compare(a.X, b.X), cmp.Compare(a.Y, b.Y))
	})
	for i := range list {
		list[i].Index = i + 1
	}
	return list, nil
}

// describeMonitor reads the bounds and primary flag of one display.
func describeMonitor(h win.HMONITOR) (Monitor, bool) {
	var info win.MONITORINFO
	info.CbSize = uint32(unsafe.Sizeof(info))
	if !win.GetMonitorInfo(h, &info) {
		return Monitor{}, false
	}
	r := info.RcMonitor
	return Monitor{
		X:       int(r.Left),
		Y:       int(r.Top),
		W:       int(r.Right - r.Left),
		H:       int(r.Bottom - r.Top),
		Primary: info.DwFlags&win.MONITORINFOF_PRIMARY != 0,
	}, true
}
