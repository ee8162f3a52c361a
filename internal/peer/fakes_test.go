package peer

import (
	"context"
	"sync"
	"time"

	"github.com/Iron-Ham/pairview/internal/errors"
	"github.com/Iron-Ham/pairview/internal/protocol"
)

const testOrigin = "http://127.0.0.1:7420"

type fakeProcess struct {
	mu      sync.Mutex
	alive   bool
	focused int
	stopped bool
}

func (p *fakeProcess) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

func (p *fakeProcess) Focus() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.focused++
	return nil
}

func (p *fakeProcess) Stop() error {
	p.kill()
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	return nil
}

func (p *fakeProcess) kill() {
	p.mu.Lock()
	p.alive = false
	p.mu.Unlock()
}

type fakeSpawner struct {
	mu       sync.Mutex
	requests []SpawnRequest
	procs    []*fakeProcess
	err      error
}

func (s *fakeSpawner) Spawn(_ context.Context, req SpawnRequest) (Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	p := &fakeProcess{alive: true}
	s.requests = append(s.requests, req)
	s.procs = append(s.procs, p)
	return p, nil
}

func (s *fakeSpawner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *fakeSpawner) last() *fakeProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.procs[len(s.procs)-1]
}

type sentFrame struct {
	name string
	msg  protocol.Message
}

// fakeSender records frames sent to connected peers and rejects the rest
// the way the channel hub does.
type fakeSender struct {
	mu        sync.Mutex
	connected map[string]bool
	sent      []sentFrame
}

func newFakeSender() *fakeSender {
	return &fakeSender{connected: make(map[string]bool)}
}

func (s *fakeSender) connect(name string) {
	s.mu.Lock()
	s.connected[name] = true
	s.mu.Unlock()
}

func (s *fakeSender) Send(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected[name] {
		return errors.ErrNotListening
	}
	_, msg, err := protocol.Decode(data)
	if err != nil {
		return err
	}
	s.sent = append(s.sent, sentFrame{name: name, msg: msg})
	return nil
}

func (s *fakeSender) frames() []sentFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentFrame(nil), s.sent...)
}

func (s *fakeSender) kinds() []protocol.Kind {
	var out []protocol.Kind
	for _, f := range s.frames() {
		out = append(out, f.msg.Kind())
	}
	return out
}

// manualScheduler holds deferred funcs until fire is called.
type manualScheduler struct {
	mu     sync.Mutex
	delays []time.Duration
	funcs  []func()
	live   []bool
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.funcs)
	s.delays = append(s.delays, d)
	s.funcs = append(s.funcs, f)
	s.live = append(s.live, true)
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		was := s.live[i]
		s.live[i] = false
		return was
	}
}

func (s *manualScheduler) scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.funcs)
}

// fire runs every pending func once.
func (s *manualScheduler) fire() {
	s.mu.Lock()
	var run []func()
	for i, f := range s.funcs {
		if s.live[i] {
			s.live[i] = false
			run = append(run, f)
		}
	}
	s.mu.Unlock()
	for _, f := range run {
		f()
	}
}

func readyFrame(origin, peerID string) []byte {
	data, err := protocol.Encode(origin, protocol.Ready{PeerID: peerID})
	if err != nil {
		panic(err)
	}
	return data
}
