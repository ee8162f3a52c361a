package peer

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/Iron-Ham/pairview/internal/errors"
	"github.com/Iron-Ham/pairview/internal/logging"
	"github.com/Iron-Ham/pairview/internal/tmux"
)

// SpawnRequest describes the peer to start.
type SpawnRequest struct {
	Name    string
	DocType string
}

// Process is a running peer as seen by the registry.
type Process interface {
	// Alive reports whether the peer process still exists. The registry
	// only asks when it needs the peer, so liveness is detected lazily.
	Alive() bool

	// Focus brings the peer in front of the user. Implementations without
	// a notion of focus return nil.
	Focus() error

	// Stop terminates the peer. It is safe to call more than once.
	Stop() error
}

// Spawner starts peer processes.
type Spawner interface {
	Spawn(ctx context.Context, req SpawnRequest) (Process, error)
}

// ViewerCommand is the argv a spawner runs for a peer, not counting the
// per-peer flags added by Args.
type ViewerCommand struct {
	// Argv is the executable and any leading arguments, e.g.
	// ["/usr/local/bin/pairview", "viewer"].
	Argv []string

	// HostURL is the websocket URL of the host's peer endpoint.
	HostURL string

	// Origin is the trusted origin the peer must tag its messages with.
	Origin string
}

// DefaultViewerCommand runs the current executable's viewer subcommand.
func DefaultViewerCommand(hostURL, origin string) (ViewerCommand, error) {
	self, err := os.Executable()
	if err != nil {
		return ViewerCommand{}, fmt.Errorf("failed to resolve executable: %w", err)
	}
	return ViewerCommand{Argv: []string{self, "viewer"}, HostURL: hostURL, Origin: origin}, nil
}

// Args returns the full argv for req.
func (c ViewerCommand) Args(req SpawnRequest) []string {
	argv := append([]string(nil), c.Argv...)
	return append(argv,
		"--host", c.HostURL,
		"--name", req.Name,
		"--origin", c.Origin,
		"--doc-type", req.DocType,
	)
}

// -----------------------------------------------------------------------------
// Exec spawner
// -----------------------------------------------------------------------------

// ExecSpawner runs each peer as a direct child process.
type ExecSpawner struct {
	Command ViewerCommand

	// Output returns where a peer's stdout and stderr go. Nil discards.
	Output func(name string) io.Writer

	// Logger records each peer's exit. Nil discards.
	Logger *logging.Logger
}

// Spawn implements Spawner. The child is not bound to ctx: it outlives the
// request that opened it.
func (s *ExecSpawner) Spawn(ctx context.Context, req SpawnRequest) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.Command.Argv) == 0 || s.Command.Argv[0] == "" {
		return nil, errors.NewPeerError("no viewer command configured", errors.ErrSpawnFailed).WithPeer(req.Name)
	}
	argv := s.Command.Args(req)

	cmd := exec.Command(argv[0], argv[1:]...)
	// Output left nil goes to the null device.
	if s.Output != nil {
		if w := s.Output(req.Name); w != nil {
			cmd.Stdout = w
			cmd.Stderr = w
			cmd.WaitDelay = time.Second
		}
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.NewPeerError("failed to start viewer", errors.Join(errors.ErrSpawnFailed, err)).
			WithPeer(req.Name).WithDocType(req.DocType)
	}

	logger := s.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	p := &execProcess{cmd: cmd, done: make(chan struct{}), logger: logger.WithPeer(req.Name)}
	go p.wait()
	return p, nil
}

type execProcess struct {
	cmd      *exec.Cmd
	done     chan struct{}
	logger   *logging.Logger
	stopOnce sync.Once
}

func (p *execProcess) wait() {
	defer close(p.done)
	if err := p.cmd.Wait(); err != nil {
		p.logger.Warn("viewer exited", "pid", p.cmd.Process.Pid, "error", err)
		return
	}
	p.logger.Info("viewer exited", "pid", p.cmd.Process.Pid)
}

func (p *execProcess) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

func (p *execProcess) Focus() error { return nil }

func (p *execProcess) Stop() error {
	var err error
	p.stopOnce.Do(func() {
		if !p.Alive() {
			return
		}
		_ = p.cmd.Process.Signal(os.Interrupt)
		select {
		case <-p.done:
		case <-time.After(tmux.DefaultGracefulStopTimeout):
			err = p.cmd.Process.Kill()
			<-p.done
		}
	})
	return err
}

// -----------------------------------------------------------------------------
// tmux spawner
// -----------------------------------------------------------------------------

// TmuxSpawner runs each peer in a detached tmux session named after the peer.
type TmuxSpawner struct {
	Command ViewerCommand

	// Socket selects the tmux server. Empty uses the user's default server,
	// which is required for Focus to switch the current client.
	Socket string
}

// Spawn implements Spawner.
func (s *TmuxSpawner) Spawn(ctx context.Context, req SpawnRequest) (Process, error) {
	if err := tmux.NewSession(ctx, s.Socket, req.Name, s.Command.Args(req)); err != nil {
		return nil, errors.NewPeerError("failed to start tmux session", errors.Join(errors.ErrSpawnFailed, err)).
			WithPeer(req.Name).WithDocType(req.DocType)
	}
	return &tmuxProcess{socket: s.Socket, session: req.Name}, nil
}

type tmuxProcess struct {
	socket  string
	session string
}

func (p *tmuxProcess) Alive() bool  { return tmux.HasSession(p.socket, p.session) }
func (p *tmuxProcess) Focus() error { return tmux.SwitchClient(p.socket, p.session) }
func (p *tmuxProcess) Stop() error {
	return tmux.Shutdown(p.socket, p.session, tmux.DefaultGracefulStopTimeout)
}
