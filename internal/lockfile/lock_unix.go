// Unix/Darwin file locking using flock(2).
//
// This file is compiled on all non-Windows platforms (Linux, macOS, *BSD).
// It uses POSIX advisory locking via [syscall.Flock]. The daemon locks the
// PID file for its lifetime to enforce single-instance execution; hook
// processes lock the state lock file around reference count and state
// read-modify-write cycles.

//go:build !windows

package lockfile

import (
	"fmt"
	"os"
	"syscall"
)

// ///////////////////////////////////////////////
// File Locking
// ///////////////////////////////////////////////

// Lock acquires an exclusive, non-blocking advisory lock on f using
// flock(2). The LOCK_NB flag causes an immediate error (EWOULDBLOCK) if
// another process already holds the lock.
func Lock(f *os.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		return fmt.Errorf("lock file %s: %w", f.Name(), err)
	}
	return nil
}

// Unlock releases the advisory flock held on f. The lock is also
// implicitly released when the file descriptor is closed.
func Unlock(f *os.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN); err != nil {
		return fmt.Errorf("unlock file %s: %w", f.Name(), err)
	}
	return nil
}
