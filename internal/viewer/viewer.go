// Package viewer is the peer process that renders one document type.
// It dials the host's message channel, announces itself with READY and
// then follows LOAD_DOC and HIGHLIGHT_FIELD instructions until the host
// goes away.
package viewer

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/Iron-Ham/pairview/internal/channel"
	"github.com/Iron-Ham/pairview/internal/errors"
	"github.com/Iron-Ham/pairview/internal/geometry"
	"github.com/Iron-Ham/pairview/internal/logging"
	"github.com/Iron-Ham/pairview/internal/protocol"
)

// Renderer draws the loaded document and its highlight.
type Renderer interface {
	Load(doc protocol.LoadDoc) error
	Highlight(overlay geometry.Overlay)
	Clear()
}

// Transport carries frames between the viewer and the host.
// *channel.Conn satisfies it.
type Transport interface {
	Send(data []byte) error
	Receive() ([]byte, error)
	Close() error
}

// Config identifies the viewer to the host.
type Config struct {
	Name    string
	DocType string
	// Origin is the trusted host origin; frames tagged otherwise are ignored.
	Origin string
	// PeerID is announced in READY. Empty means a fresh uuid.
	PeerID string
}

// Viewer runs the peer side of the handshake.
type Viewer struct {
	cfg       Config
	gate      protocol.Gate
	transport Transport
	renderer  Renderer
	logger    *logging.Logger

	mu     sync.Mutex
	loaded *protocol.LoadDoc
}

// New creates a viewer over an established transport.
func New(cfg Config, transport Transport, renderer Renderer, logger *logging.Logger) *Viewer {
	if cfg.PeerID == "" {
		cfg.PeerID = uuid.NewString()
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Viewer{
		cfg:       cfg,
		gate:      protocol.NewGate(cfg.Origin),
		transport: transport,
		renderer:  renderer,
		logger:    logger.WithComponent("viewer").WithPeer(cfg.Name).WithDocType(cfg.DocType),
	}
}

// Dial connects to the host at hostURL and returns a viewer ready to Run.
func Dial(ctx context.Context, hostURL string, cfg Config, renderer Renderer, logger *logging.Logger) (*Viewer, error) {
	conn, err := channel.Dial(ctx, hostURL, cfg.Name, cfg.Origin)
	if err != nil {
		return nil, errors.NewPeerError("failed to reach host", err).WithPeer(cfg.Name).WithDocType(cfg.DocType)
	}
	return New(cfg, conn, renderer, logger), nil
}

// PeerID returns the id announced in READY.
func (v *Viewer) PeerID() string { return v.cfg.PeerID }

// loadedDoc returns the document currently rendered.
func (v *Viewer) loadedDoc() (protocol.LoadDoc, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.loaded == nil {
		return protocol.LoadDoc{}, false
	}
	return *v.loaded, true
}

// Run sends READY once and handles frames until the host closes the
// channel or ctx is cancelled. A normal close returns nil.
func (v *Viewer) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = v.transport.Close() })
	defer stop()

	if err := v.send(protocol.Ready{PeerID: v.cfg.PeerID}); err != nil {
		return errors.NewPeerError("failed to announce READY", err).WithPeer(v.cfg.Name)
	}
	v.logger.Info("ready sent", "peer_id", v.cfg.PeerID)

	for {
		data, err := v.transport.Receive()
		if err != nil {
			if ctx.Err() != nil || channel.IsClosed(err) {
				v.logger.Info("channel closed")
				return nil
			}
			return errors.NewPeerError("channel failed", err).WithPeer(v.cfg.Name)
		}
		v.Handle(data)
	}
}

// Handle processes one inbound frame. Untrusted or malformed frames and
// kinds a viewer does not act on are ignored.
func (v *Viewer) Handle(data []byte) {
	msg, ok, err := v.gate.Open(data)
	if !ok {
		v.logger.Debug("frame ignored", "error", err)
		return
	}

	switch m := msg.(type) {
	case protocol.LoadDoc:
		v.load(m)
	case protocol.HighlightField:
		v.highlight(m)
	case protocol.Ping:
		if err := v.send(protocol.Pong{}); err != nil {
			v.logger.Warn("failed to answer ping", "error", err)
		}
	default:
		v.logger.Debug("frame ignored", "kind", string(msg.Kind()))
	}
}

func (v *Viewer) load(doc protocol.LoadDoc) {
	v.renderer.Clear()
	if err := v.renderer.Load(doc); err != nil {
		v.logger.Warn("failed to load document", "base", doc.Base, "error", err)
		return
	}
	v.mu.Lock()
	v.loaded = &doc
	v.mu.Unlock()
	v.logger.Info("document loaded", "base", doc.Base, "source", doc.SourceURL)
}

func (v *Viewer) highlight(h protocol.HighlightField) {
	v.mu.Lock()
	loaded := v.loaded
	v.mu.Unlock()

	if loaded == nil {
		v.logger.Debug("highlight before any document ignored", "base", h.Base)
		return
	}
	// The host reloads the peer before highlighting another pair, so a
	// differing base only means the LOAD_DOC is still in flight or failed.
	if loaded.Base != h.Base {
		v.logger.Debug("highlight base differs from loaded document", "base", h.Base, "loaded", loaded.Base)
	}
	v.renderer.Highlight(h.BBox.Overlay())
}

func (v *Viewer) send(msg protocol.Message) error {
	data, err := v.gate.Seal(msg)
	if err != nil {
		return err
	}
	return v.transport.Send(data)
}
