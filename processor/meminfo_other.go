//go:build !linux

package processor

import (
	"fmt"
	"runtime"
)

func availableMemory() (int64, error) {
	return 0, fmt.Errorf("available memory is not known on %s", runtime.GOOS)
}
