// Package tmux wraps the handful of tmux commands pairview needs to run
// viewer peers in detached sessions.
//
// An empty socket name addresses the user's default tmux server, which is
// what lets the host switch the current client onto a viewer session.
// A named socket isolates viewers on a private server.
package tmux

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"
)

// SocketName is the private socket used when viewers should not share the
// user's tmux server.
const SocketName = "pairview"

// commandTimeout bounds short tmux queries.
const commandTimeout = 2 * time.Second

// CommandArgsWithSocket returns tmux arguments with the socket selector
// prepended. An empty socket leaves the default server selected.
func CommandArgsWithSocket(socket string, args ...string) []string {
	if socket == "" {
		return append([]string(nil), args...)
	}
	return append([]string{"-L", socket}, args...)
}

// CommandWithSocket creates an exec.Cmd for tmux on the given socket.
func CommandWithSocket(socket string, args ...string) *exec.Cmd {
	return exec.Command("tmux", CommandArgsWithSocket(socket, args...)...)
}

// CommandContextWithSocket creates a context-aware exec.Cmd for tmux on the
// given socket.
func CommandContextWithSocket(ctx context.Context, socket string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, "tmux", CommandArgsWithSocket(socket, args...)...)
}

// NewSessionArgs returns the arguments that start a detached session named
// name running argv.
func NewSessionArgs(socket, name string, argv []string) []string {
	args := []string{"new-session", "-d", "-s", name, "--"}
	return CommandArgsWithSocket(socket, append(args, argv...)...)
}

// NewSession starts a detached session running argv. Any stale session
// with the same name is killed first.
func NewSession(ctx context.Context, socket, name string, argv []string) error {
	_ = KillSession(socket, name)

	cmd := exec.CommandContext(ctx, "tmux", NewSessionArgs(socket, name, argv)...)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")
	if out, err := cmd.CombinedOutput(); err != nil {
		return &CommandError{Args: cmd.Args, Output: strings.TrimSpace(string(out)), Err: err}
	}
	return nil
}

// HasSession reports whether the named session exists.
func HasSession(socket, name string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return CommandContextWithSocket(ctx, socket, "has-session", "-t", name).Run() == nil
}

// KillSession kills the named session. A missing session is not an error.
func KillSession(socket, name string) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	out, err := CommandContextWithSocket(ctx, socket, "kill-session", "-t", name).CombinedOutput()
	if err != nil && !isSessionNotFound(string(out)) {
		return &CommandError{Args: []string{"kill-session", name}, Output: strings.TrimSpace(string(out)), Err: err}
	}
	return nil
}

// Inside reports whether the current process runs inside a tmux client.
func Inside() bool {
	return os.Getenv("TMUX") != ""
}

// SwitchClient moves the current tmux client onto the named session.
// It is a no-op outside tmux.
func SwitchClient(socket, name string) error {
	if !Inside() {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return CommandContextWithSocket(ctx, socket, "switch-client", "-t", name).Run()
}

func isSessionNotFound(output string) bool {
	output = strings.ToLower(output)
	return strings.Contains(output, "can't find session") ||
		strings.Contains(output, "no server running") ||
		strings.Contains(output, "session not found")
}

// CommandError describes a failed tmux invocation.
type CommandError struct {
	Args   []string
	Output string
	Err    error
}

func (e *CommandError) Error() string {
	msg := "tmux " + strings.Join(e.Args, " ") + ": " + e.Err.Error()
	if e.Output != "" {
		msg += " (" + e.Output + ")"
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }
