package lifecycle

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"tools.zach/dev/codecord/internal/lockfile"
	"tools.zach/dev/codecord/internal/paths"
)

// ///////////////////////////////////////////////
// PID File Management
// ///////////////////////////////////////////////

// NewToken generates a random 16-character hex token used to prove
// ownership of the PID file, so [RemovePID] only deletes the file if this
// instance wrote it.
func NewToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// WritePID creates or opens the daemon PID file, acquires an advisory
// lock, and writes "PID:TOKEN" content. The returned file handle must be
// kept open for the lifetime of the daemon to hold the lock; pass it to
// [RemovePID] on shutdown.
func WritePID(dir paths.DataDir, token string) (*os.File, error) {
	f, err := os.OpenFile(dir.PID(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open PID file: %w", err)
	}
	if err := lockfile.Lock(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock PID file: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		_ = lockfile.Unlock(f)
		f.Close()
		return nil, fmt.Errorf("truncate PID file: %w", err)
	}
	content := fmt.Sprintf("%d:%s", os.Getpid(), token)
	if _, err := f.WriteString(content); err != nil {
		_ = lockfile.Unlock(f)
		f.Close()
		return nil, fmt.Errorf("write PID file: %w", err)
	}
	return f, nil
}

// RemovePID releases the advisory lock, closes the file handle, and
// removes the PID file only if the stored token matches, preventing
// accidental removal of a file owned by a different daemon instance.
func RemovePID(dir paths.DataDir, token string, f *os.File) {
	if f != nil {
		_ = lockfile.Unlock(f)
		f.Close()
	}
	data, err := os.ReadFile(dir.PID())
	if err != nil {
		return
	}
	parts := strings.SplitN(string(data), ":", 2)
	if len(parts) == 2 && parts[1] == token {
		os.Remove(dir.PID())
	}
}

// OwnsPID reports whether the PID file still names this daemon instance.
// The daemon checks this each tick: a mismatch means a newer instance took
// over (or the file was removed), so the stale daemon should exit.
func OwnsPID(dir paths.DataDir, token string) bool {
	data, err := os.ReadFile(dir.PID())
	if err != nil {
		return false
	}
	parts := strings.SplitN(string(data), ":", 2)
	return len(parts) == 2 && parts[1] == token
}

// Probe checks whether a daemon instance is running. It attempts to
// acquire the advisory lock on the PID file; if the lock fails, a live
// daemon holds it and its PID is returned. If the lock succeeds, any
// previous instance is dead and the stale file is cleaned up.
func Probe(dir paths.DataDir) (alive bool, pid int) {
	f, err := os.OpenFile(dir.PID(), os.O_RDWR, 0o600)
	if err != nil {
		return false, 0
	}

	if lockErr := lockfile.Lock(f); lockErr != nil {
		data, _ := os.ReadFile(dir.PID())
		f.Close()
		parts := strings.SplitN(string(data), ":", 2)
		if len(parts) >= 1 {
			if p, convErr := strconv.Atoi(parts[0]); convErr == nil {
				return true, p
			}
		}
		return true, 0
	}

	// Lock acquired, so the previous instance is dead. Clean up the
	// stale file.
	_ = lockfile.Unlock(f)
	f.Close()
	os.Remove(dir.PID())
	return false, 0
}
