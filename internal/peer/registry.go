package peer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Iron-Ham/pairview/internal/errors"
	"github.com/Iron-Ham/pairview/internal/event"
	"github.com/Iron-Ham/pairview/internal/logging"
	"github.com/Iron-Ham/pairview/internal/pairing"
	"github.com/Iron-Ham/pairview/internal/protocol"
)

// DefaultRetryDelay is the pause before the single highlight retry.
const DefaultRetryDelay = 400 * time.Millisecond

// Sender delivers an encoded frame to a connected peer by name.
// It returns errors.ErrNotListening when the peer has no connection;
// the frame is then lost.
type Sender interface {
	Send(name string, data []byte) error
}

// Config holds registry settings.
type Config struct {
	// Origin is the host's own origin. Outgoing frames carry it and
	// incoming frames must match it.
	Origin string

	// NamePrefix prefixes peer names (default DefaultNamePrefix).
	NamePrefix string

	// RetryDelay is the delay before the single highlight retry.
	RetryDelay time.Duration
}

// Option configures a Registry.
type Option func(*Registry)

// WithScheduler replaces the timer-based scheduler.
func WithScheduler(s Scheduler) Option {
	return func(r *Registry) { r.sched = s }
}

// WithBus publishes lifecycle events on bus.
func WithBus(bus *event.Bus) Option {
	return func(r *Registry) { r.bus = bus }
}

// WithLogger sets the registry logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l.WithComponent("registry")
		}
	}
}

// Registry tracks viewer peers by document type and mediates every
// message the host sends them. It is safe for concurrent use.
type Registry struct {
	cfg     Config
	gate    protocol.Gate
	spawner Spawner
	sender  Sender
	sched   Scheduler
	bus     *event.Bus
	logger  *logging.Logger

	mu      sync.Mutex
	handles map[string]*Handle      // docType -> tracked handle
	byName  map[string]*Handle      // peer name -> tracked handle
	pending map[string]pairing.Pair // peer name -> pair awaiting READY
	retries map[uint64]func() bool  // outstanding retry cancels
	nextID  uint64
	closed  bool
}

// NewRegistry creates a registry that starts peers with spawner and reaches
// them through sender.
func NewRegistry(cfg Config, spawner Spawner, sender Sender, opts ...Option) *Registry {
	if cfg.NamePrefix == "" {
		cfg.NamePrefix = DefaultNamePrefix
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	r := &Registry{
		cfg:     cfg,
		gate:    protocol.NewGate(cfg.Origin),
		spawner: spawner,
		sender:  sender,
		sched:   TimerScheduler{},
		logger:  logging.NopLogger(),
		handles: make(map[string]*Handle),
		byName:  make(map[string]*Handle),
		pending: make(map[string]pairing.Pair),
		retries: make(map[uint64]func() bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PeerName returns the name the registry uses for docType's peer.
func (r *Registry) PeerName(docType string) string {
	return PeerName(r.cfg.NamePrefix, docType)
}

func (r *Registry) publish(events []event.Event) {
	if r.bus == nil {
		return
	}
	for _, e := range events {
		r.bus.Publish(e)
	}
}

// OpenOrAttach makes sure a peer for pair.DocType exists and is headed for
// pair. With no tracked peer one is spawned and a pending registration is
// recorded under its name. With a tracked peer no process is started:
// a peer still awaiting READY has its pending pair replaced, and a live
// peer showing a different pair is sent LOAD_DOC. The peer is focused in
// every case.
func (r *Registry) OpenOrAttach(ctx context.Context, pair pairing.Pair) (HandleInfo, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return HandleInfo{}, errors.NewPeerError("registry closed", nil).WithDocType(pair.DocType)
	}

	var events []event.Event
	h := r.liveLocked(pair.DocType, &events)
	if h == nil {
		name := r.PeerName(pair.DocType)
		if other, ok := r.byName[name]; ok && other.DocType != pair.DocType && r.liveLocked(other.DocType, &events) != nil {
			r.mu.Unlock()
			r.publish(events)
			return HandleInfo{}, errors.NewPeerError("peer name used by doc type "+other.DocType, errors.ErrNameCollision).
				WithPeer(name).WithDocType(pair.DocType)
		}
		proc, err := r.spawner.Spawn(ctx, SpawnRequest{Name: name, DocType: pair.DocType})
		if err != nil {
			r.mu.Unlock()
			r.publish(events)
			r.logger.WithPeer(name).Error("spawn failed", "error", err)
			return HandleInfo{}, err
		}
		h = &Handle{DocType: pair.DocType, Name: name, state: StateSpawning, pair: pair, proc: proc}
		r.handles[pair.DocType] = h
		r.byName[name] = h
		r.pending[name] = pair
		events = append(events, event.NewPeerSpawnedEvent(name, pair.DocType, pair.Base))
		r.logger.WithPeer(name).Info("peer spawned", "doc_type", pair.DocType, "base", pair.Base)
	} else {
		r.attachLocked(h, pair, &events)
	}
	info := h.info()
	proc := h.proc
	r.mu.Unlock()

	r.publish(events)
	if err := proc.Focus(); err != nil {
		r.logger.WithPeer(info.Name).Warn("focus failed", "error", err)
	}
	return info, nil
}

func (r *Registry) attachLocked(h *Handle, pair pairing.Pair, events *[]event.Event) {
	switch h.state {
	case StateSpawning, StateReady:
		r.pending[h.Name] = pair
		h.pair = pair
	case StateLive:
		if h.pair == pair {
			return
		}
		if err := r.sendLocked(h.Name, loadDoc(pair)); err != nil {
			// The connection went away; a reconnecting peer's READY picks
			// the pair up from pending.
			r.logger.WithPeer(h.Name).Warn("load failed, awaiting READY", "error", err)
			r.pending[h.Name] = pair
			h.state = StateReady
			h.pair = pair
			return
		}
		h.pair = pair
		*events = append(*events, event.NewDocLoadedEvent(h.Name, pair.Base))
	}
}

// LivePeer returns the tracked peer for docType if its process is alive.
// A dead peer is marked closed and forgotten.
func (r *Registry) LivePeer(docType string) (HandleInfo, bool) {
	r.mu.Lock()
	var events []event.Event
	h := r.liveLocked(docType, &events)
	var info HandleInfo
	if h != nil {
		info = h.info()
	}
	r.mu.Unlock()

	r.publish(events)
	return info, h != nil
}

func (r *Registry) liveLocked(docType string, events *[]event.Event) *Handle {
	h, ok := r.handles[docType]
	if !ok {
		return nil
	}
	if h.proc.Alive() {
		return h
	}
	h.state = StateClosed
	delete(r.handles, docType)
	if r.byName[h.Name] == h {
		delete(r.byName, h.Name)
	}
	*events = append(*events, event.NewPeerClosedEvent(h.Name, docType))
	r.logger.WithPeer(h.Name).Info("peer closed", "doc_type", docType)
	return nil
}

// Receive handles one frame from the named peer. Frames from other origins,
// malformed frames and unknown kinds are dropped without error.
func (r *Registry) Receive(name string, data []byte) {
	msg, ok, err := r.gate.Open(data)
	if !ok {
		r.logger.WithPeer(name).Debug("frame dropped", "error", err)
		return
	}

	switch m := msg.(type) {
	case protocol.Ready:
		r.markReady(name, m.PeerID)
		r.ResolvePending(name)
	case protocol.Ping:
		r.mu.Lock()
		if err := r.sendLocked(name, protocol.Pong{}); err != nil {
			r.logger.WithPeer(name).Debug("pong dropped", "error", err)
		}
		r.mu.Unlock()
	case protocol.Pong:
		r.logger.WithPeer(name).Debug("pong received")
	case protocol.LoadDoc, protocol.HighlightField:
		r.logger.WithPeer(name).Debug("host-bound frame of peer-bound kind dropped", "kind", string(m.Kind()))
	default:
		r.logger.WithPeer(name).Debug("unhandled message kind", "kind", string(msg.Kind()))
	}
}

func (r *Registry) markReady(name, peerID string) {
	r.mu.Lock()
	h, ok := r.byName[name]
	if ok {
		h.peerID = peerID
		if h.state == StateSpawning {
			h.state = StateReady
		}
	}
	r.mu.Unlock()

	r.publish([]event.Event{event.NewPeerReadyEvent(name, peerID)})
}

// ResolvePending delivers LOAD_DOC for the pair pending under name and
// removes the entry. It reports false, and sends nothing, when no entry
// exists.
func (r *Registry) ResolvePending(name string) bool {
	r.mu.Lock()
	pair, ok := r.pending[name]
	if !ok {
		r.mu.Unlock()
		r.logger.WithPeer(name).Debug("READY without pending registration")
		return false
	}
	delete(r.pending, name)

	var events []event.Event
	err := r.sendLocked(name, loadDoc(pair))
	if err != nil {
		r.logger.WithPeer(name).Warn("initial load dropped", "base", pair.Base, "error", err)
	} else {
		if h, ok := r.byName[name]; ok {
			h.state = StateLive
			h.pair = pair
		}
		events = append(events, event.NewDocLoadedEvent(name, pair.Base))
	}
	r.mu.Unlock()

	r.publish(events)
	return err == nil
}

func (r *Registry) sendLocked(name string, msg protocol.Message) error {
	data, err := r.gate.Seal(msg)
	if err != nil {
		return err
	}
	return r.sender.Send(name, data)
}

func loadDoc(pair pairing.Pair) protocol.LoadDoc {
	return protocol.LoadDoc{
		Base:      pair.Base,
		DocType:   pair.DocType,
		SourceURL: pair.SourceURL,
		DataURL:   pair.DataURL,
	}
}

// Pending returns the peer names with an unresolved registration, sorted.
func (r *Registry) Pending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.pending))
	for name := range r.pending {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Handles returns a snapshot of the tracked peers sorted by doc type.
// It does not probe liveness.
func (r *Registry) Handles() []HandleInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]HandleInfo, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocType < out[j].DocType })
	return out
}

// StopPeers stops every tracked peer process and forgets it. Pending
// registrations for those peers are discarded. It returns the joined stop
// errors.
func (r *Registry) StopPeers() error {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.handles))
	for docType, h := range r.handles {
		handles = append(handles, h)
		h.state = StateClosed
		delete(r.handles, docType)
		delete(r.byName, h.Name)
		delete(r.pending, h.Name)
	}
	r.mu.Unlock()

	var errs []error
	events := make([]event.Event, 0, len(handles))
	for _, h := range handles {
		if err := h.proc.Stop(); err != nil {
			errs = append(errs, errors.Wrapf(err, "stop %s", h.Name))
		}
		r.logger.WithPeer(h.Name).Info("peer stopped", "doc_type", h.DocType)
		events = append(events, event.NewPeerClosedEvent(h.Name, h.DocType))
	}
	r.publish(events)
	return errors.Join(errs...)
}

// Close cancels outstanding retries and refuses further opens. Peers are
// left running; they exit on their own when the channel closes.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for id, cancel := range r.retries {
		cancel()
		delete(r.retries, id)
	}
}
