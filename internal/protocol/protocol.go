package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/Iron-Ham/pairview/internal/errors"
	"github.com/Iron-Ham/pairview/internal/geometry"
)

// Kind is the tag of a message on the wire.
type Kind string

const (
	KindReady     Kind = "READY"
	KindLoadDoc   Kind = "LOAD_DOC"
	KindHighlight Kind = "HIGHLIGHT_FIELD"
	KindPing      Kind = "PING"
	KindPong      Kind = "PONG"
)

// Message is implemented by exactly the five message structs in this package.
type Message interface {
	Kind() Kind
	sealed()
}

// Ready is sent by a peer once it is prepared to receive LoadDoc.
type Ready struct {
	PeerID string `json:"peerId"`
}

// LoadDoc instructs a peer to render a source document.
type LoadDoc struct {
	Base      string `json:"base"`
	DocType   string `json:"docType"`
	SourceURL string `json:"sourceUrl"`
	DataURL   string `json:"dataUrl"`
}

// HighlightField instructs a peer to highlight a region of the loaded document.
type HighlightField struct {
	Base string        `json:"base"`
	BBox geometry.BBox `json:"bbox"`
}

// Ping probes peer liveness.
type Ping struct{}

// Pong answers a Ping.
type Pong struct{}

func (Ready) Kind() Kind          { return KindReady }
func (LoadDoc) Kind() Kind        { return KindLoadDoc }
func (HighlightField) Kind() Kind { return KindHighlight }
func (Ping) Kind() Kind           { return KindPing }
func (Pong) Kind() Kind           { return KindPong }

func (Ready) sealed()          {}
func (LoadDoc) sealed()        {}
func (HighlightField) sealed() {}
func (Ping) sealed()           {}
func (Pong) sealed()           {}

// Envelope is the wire form of a message.
type Envelope struct {
	Origin string          `json:"origin"`
	Kind   Kind            `json:"kind"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// Encode wraps msg in an envelope tagged with origin.
func Encode(origin string, msg Message) ([]byte, error) {
	if msg == nil {
		return nil, errors.NewValidationError("nil message")
	}
	env := Envelope{Origin: origin, Kind: msg.Kind()}
	switch msg.(type) {
	case Ping, Pong:
		// bodiless
	default:
		body, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s body: %w", msg.Kind(), err)
		}
		env.Body = body
	}
	return json.Marshal(env)
}

// Decode parses a frame into its origin and message.
// Returns errors.ErrUnknownKind for kinds outside the closed set.
func Decode(data []byte) (string, Message, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("malformed envelope: %w", err)
	}

	var msg Message
	switch env.Kind {
	case KindReady:
		var m Ready
		if err := decodeBody(env.Body, &m); err != nil {
			return "", nil, err
		}
		msg = m
	case KindLoadDoc:
		var m LoadDoc
		if err := decodeBody(env.Body, &m); err != nil {
			return "", nil, err
		}
		msg = m
	case KindHighlight:
		var m HighlightField
		if err := decodeBody(env.Body, &m); err != nil {
			return "", nil, err
		}
		msg = m
	case KindPing:
		msg = Ping{}
	case KindPong:
		msg = Pong{}
	default:
		return "", nil, fmt.Errorf("%w: %q", errors.ErrUnknownKind, env.Kind)
	}
	return env.Origin, msg, nil
}

func decodeBody(body json.RawMessage, v any) error {
	if len(body) == 0 {
		return fmt.Errorf("malformed envelope: missing body")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("malformed body: %w", err)
	}
	return nil
}
