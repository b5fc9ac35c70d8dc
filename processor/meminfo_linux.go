//go:build linux

package processor

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// availableMemory returns the bytes the kernel considers available for new
// allocations. MemAvailable from /proc/meminfo is preferred; kernels that
// lack it fall back to free plus buffer memory from sysinfo(2).
func availableMemory() (int64, error) {
	kb, err := parseMemAvailable("/proc/meminfo")
	if err == nil {
		return kb * 1024, nil
	}

	var info unix.Sysinfo_t
	if serr := unix.Sysinfo(&info); serr != nil {
		return 0, fmt.Errorf("meminfo: %v, sysinfo: %v", err, serr)
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	return int64((uint64(info.Freeram) + uint64(info.Bufferram)) * unit), nil
}

func parseMemAvailable(procPath string) (int64, error) {
	data, err := os.ReadFile(procPath)
	if err != nil {
		return 0, err
	}

	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Split(line, ":")
		if len(fields) != 2 || strings.TrimSpace(fields[0]) != "MemAvailable" {
			continue
		}
		val := strings.TrimSpace(fields[1])
		if !strings.HasSuffix(val, "kB") {
			return 0, fmt.Errorf("%s: unexpected unit in %s", procPath, line)
		}
		kb, err := strconv.ParseInt(strings.TrimSpace(strings.TrimSuffix(val, "kB")), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: failed to parse %s", procPath, line)
		}
		return kb, nil
	}
	return 0, fmt.Errorf("%s: MemAvailable not found", procPath)
}
