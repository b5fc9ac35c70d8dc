//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package processor

import "os"

func withFileLock(f *os.File, fn func() error) error {
	return fn()
}
