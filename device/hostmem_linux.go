//go:build linux

package device

import (
	"golang.org/x/sys/unix"
)

// hostMemory reports free and total RAM from sysinfo(2)
func hostMemory() (free, total uint64, err error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, 0, err
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	return uint64(info.Freeram) * unit, uint64(info.Totalram) * unit, nil
}
