//go:build !linux

package device

import "errors"

func hostMemory() (free, total uint64, err error) {
	return 0, 0, errors.New("host memory query not supported on this platform")
}
