package tmux

import (
	"context"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// DefaultGracefulStopTimeout is how long Shutdown waits after Ctrl+C
// before killing the session.
const DefaultGracefulStopTimeout = 500 * time.Millisecond

// GetPanePID returns the PID of the process running in the session's pane.
// Returns 0 if the PID cannot be determined (e.g., session doesn't exist).
func GetPanePID(socket, session string) int {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	output, err := CommandContextWithSocket(ctx, socket, "display-message", "-t", session, "-p", "#{pane_pid}").Output()
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(output)))
	if err != nil {
		return 0
	}
	return pid
}

// IsProcessAlive checks if a process with the given PID exists.
// Uses kill(pid, 0) which checks for existence without sending a signal.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, 0) == nil
}

// WaitForProcessExit polls until the given PID exits or the timeout is reached.
// Returns true if the process exited within the timeout.
func WaitForProcessExit(pid int, timeout time.Duration) bool {
	if pid <= 0 || !IsProcessAlive(pid) {
		return true
	}

	deadline := time.After(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			return !IsProcessAlive(pid)
		case <-ticker.C:
			if !IsProcessAlive(pid) {
				return true
			}
		}
	}
}

// Shutdown sends Ctrl+C to the session, waits for the pane process to exit
// and then kills the session.
func Shutdown(socket, session string, graceful time.Duration) error {
	pid := GetPanePID(socket, session)
	_ = CommandWithSocket(socket, "send-keys", "-t", session, "C-c").Run()
	WaitForProcessExit(pid, graceful)
	return KillSession(socket, session)
}
