// Daemon process control on Unix. The daemon is spawned as a session
// leader via setsid(2) so it survives the hook process and its terminal;
// termination and liveness use conventional signals.

//go:build !windows

package lifecycle

import (
	"fmt"
	"os/exec"
	"syscall"
)

// detachedSpawn starts exe with args as a detached background process and
// returns its PID. The child gets no stdio; it logs to its own file.
func detachedSpawn(exe string, args []string) (int, error) {
	cmd := exec.Command(exe, args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start daemon: %w", err)
	}
	pid := cmd.Process.Pid
	// The hook process exits immediately; release the handle so the
	// child re-parents to init instead of waiting on us.
	_ = cmd.Process.Release()
	return pid, nil
}

// terminateProcess asks the daemon to shut down with SIGTERM.
func terminateProcess(pid int) error {
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}
	return nil
}

// processAlive reports whether pid names a live process (signal 0 probe).
func processAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
