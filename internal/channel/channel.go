// Package channel carries protocol frames between the host and its viewer
// peers over websockets.
//
// The host mounts a [Hub] at /peer. Each peer dials it with [Dial], naming
// itself in the query string and presenting the trusted origin. The hub
// delivers in order per peer, gives no ordering across peers, and drops
// frames addressed to a peer that is not connected.
package channel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Iron-Ham/pairview/internal/errors"
	"github.com/Iron-Ham/pairview/internal/logging"
)

const (
	// maxFrameSize bounds a single incoming frame.
	maxFrameSize = 1 << 20

	writeTimeout = 5 * time.Second
)

// Receiver handles a frame read from the named peer.
type Receiver func(name string, data []byte)

// Hub accepts peer connections and routes frames by peer name.
// It is safe for concurrent use.
type Hub struct {
	origin   string
	upgrader websocket.Upgrader
	logger   *logging.Logger

	mu      sync.RWMutex
	conns   map[string]*hubConn
	receive Receiver
	closed  bool
}

type hubConn struct {
	name    string
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (c *hubConn) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// NewHub creates a hub that only accepts upgrades whose Origin header
// equals origin.
func NewHub(origin string, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NopLogger()
	}
	h := &Hub{
		origin: origin,
		logger: logger.WithComponent("hub"),
		conns:  make(map[string]*hubConn),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return origin != "" && r.Header.Get("Origin") == origin
		},
	}
	return h
}

// OnMessage sets the receiver for incoming frames. Frames read before a
// receiver is set are discarded.
func (h *Hub) OnMessage(r Receiver) {
	h.mu.Lock()
	h.receive = r
	h.mu.Unlock()
}

// ServeHTTP upgrades a peer connection. The peer name comes from the
// "name" query parameter. A newer connection under the same name replaces
// the older one.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "missing peer name", http.StatusBadRequest)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.WithPeer(name).Debug("upgrade rejected", "error", err)
		return
	}
	ws.SetReadLimit(maxFrameSize)

	conn := &hubConn{name: name, ws: ws}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = ws.Close()
		return
	}
	old := h.conns[name]
	h.conns[name] = conn
	h.mu.Unlock()

	if old != nil {
		h.logger.WithPeer(name).Info("peer reconnected, closing previous connection")
		_ = old.ws.Close()
	}
	h.logger.WithPeer(name).Info("peer connected", "remote", r.RemoteAddr)

	h.readLoop(conn)
}

func (h *Hub) readLoop(conn *hubConn) {
	defer h.drop(conn)

	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.WithPeer(conn.name).Warn("peer connection lost", "error", err)
			}
			return
		}

		h.mu.RLock()
		receive := h.receive
		h.mu.RUnlock()
		if receive != nil {
			receive(conn.name, data)
		}
	}
}

func (h *Hub) drop(conn *hubConn) {
	h.mu.Lock()
	if h.conns[conn.name] == conn {
		delete(h.conns, conn.name)
	}
	h.mu.Unlock()
	_ = conn.ws.Close()
	h.logger.WithPeer(conn.name).Info("peer disconnected")
}

// Send writes one frame to the named peer. It returns an error wrapping
// errors.ErrNotListening when the peer has no open connection.
func (h *Hub) Send(name string, data []byte) error {
	h.mu.RLock()
	conn, ok := h.conns[name]
	h.mu.RUnlock()
	if !ok {
		return errors.NewPeerError("frame dropped", errors.ErrNotListening).WithPeer(name)
	}
	if err := conn.write(data); err != nil {
		return errors.NewPeerError("write failed", errors.Join(errors.ErrNotListening, err)).WithPeer(name)
	}
	return nil
}

// Connected reports whether the named peer has an open connection.
func (h *Hub) Connected(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[name]
	return ok
}

// Names returns the connected peer names, sorted.
func (h *Hub) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.conns))
	for name := range h.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close disconnects every peer and refuses new connections.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	conns := h.conns
	h.conns = make(map[string]*hubConn)
	h.mu.Unlock()

	for _, c := range conns {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "host shutting down"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = c.ws.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------
// Peer side
// -----------------------------------------------------------------------------

// Conn is a peer's connection to the hub.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

// PeerURL returns the hub URL a peer named name dials.
func PeerURL(hostURL, name string) (string, error) {
	u, err := url.Parse(hostURL)
	if err != nil {
		return "", fmt.Errorf("invalid host url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid host url %q: unsupported scheme", hostURL)
	}
	q := u.Query()
	q.Set("name", name)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Dial connects to the hub at hostURL as the named peer, presenting origin.
func Dial(ctx context.Context, hostURL, name, origin string) (*Conn, error) {
	target, err := PeerURL(hostURL, name)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}
	header := http.Header{}
	header.Set("Origin", origin)

	ws, resp, err := dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial %s: %w (status %d)", target, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", target, err)
	}
	ws.SetReadLimit(maxFrameSize)
	return &Conn{ws: ws}, nil
}

// Send writes one frame to the host.
func (c *Conn) Send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Receive blocks until the next frame from the host.
func (c *Conn) Receive() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

// IsClosed reports whether err from Receive means the host went away
// normally.
func IsClosed(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

// Close sends a close frame and closes the connection.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.ws.Close()
}
