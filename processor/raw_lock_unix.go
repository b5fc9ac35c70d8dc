//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package processor

import (
	"os"

	"golang.org/x/sys/unix"
)

// withFileLock runs fn holding an exclusive flock on f, which serialises
// shard processes writing the same raw file header.
func withFileLock(f *os.File, fn func() error) error {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return err
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return fn()
}
