// Package lockfile provides cross-process advisory file locking.
//
// Two usage patterns exist: the daemon holds a long-lived lock on its PID
// file (acquired once via [Lock], released on exit), while short-lived hook
// processes use [Acquire] to wait briefly for the state lock file before a
// read-modify-write cycle.
package lockfile

import (
	"fmt"
	"os"
	"time"
)

// Default timing for [Acquire]. A hook process should never wait long: the
// critical sections guarded by the state lock are single-file reads and
// writes, so contention clears in milliseconds.
const (
	acquireTimeout  = 5 * time.Second
	acquireInterval = 10 * time.Millisecond
)

// Acquire opens (creating if necessary) the lock file at path and blocks
// until the exclusive lock is held or the timeout elapses. It returns a
// release function that unlocks and closes the file. The lock file itself
// is never removed; it exists only to carry the lock.
func Acquire(path string) (release func(), err error) {
	deadline := time.Now().Add(acquireTimeout)

	for {
		f, openErr := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
		if openErr != nil {
			return nil, fmt.Errorf("open lock file: %w", openErr)
		}

		if lockErr := Lock(f); lockErr == nil {
			return func() {
				_ = Unlock(f)
				f.Close()
			}, nil
		}
		f.Close()

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("acquire lock %s: timed out after %s", path, acquireTimeout)
		}
		time.Sleep(acquireInterval)
	}
}
