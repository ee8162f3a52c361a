package peer

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/pairview/internal/pairing"
)

// State is the handshake state of a tracked peer.
type State int

const (
	// StateSpawning means the process was started and READY is awaited.
	StateSpawning State = iota
	// StateReady means READY arrived but no document is loaded yet.
	StateReady
	// StateLive means the peer has a document loaded and accepts highlights.
	StateLive
	// StateClosed means the process was found dead.
	StateClosed
)

// String returns a human-readable string for the state.
func (s State) String() string {
	switch s {
	case StateSpawning:
		return "spawning"
	case StateReady:
		return "ready"
	case StateLive:
		return "live"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name in JSON and YAML output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{StateSpawning, StateReady, StateLive, StateClosed} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown peer state %q", text)
}

// Handle is one spawned viewer, owned by the Registry.
type Handle struct {
	DocType string
	Name    string
	state   State
	pair    pairing.Pair // pair loaded (Live) or awaited (Spawning)
	peerID  string
	proc    Process
}

// HandleInfo is a point-in-time copy of a Handle.
type HandleInfo struct {
	DocType string `json:"docType" yaml:"doc_type"`
	Name    string `json:"name" yaml:"name"`
	State   State  `json:"state" yaml:"state"`
	Base    string `json:"base,omitempty" yaml:"base,omitempty"`
	PeerID  string `json:"peerId,omitempty" yaml:"peer_id,omitempty"`
}

func (h *Handle) info() HandleInfo {
	return HandleInfo{
		DocType: h.DocType,
		Name:    h.Name,
		State:   h.state,
		Base:    h.pair.Base,
		PeerID:  h.peerID,
	}
}

// DefaultNamePrefix prefixes every peer name.
const DefaultNamePrefix = "pairview-viewer"

// PeerName derives the stable peer name for a document type.
// Characters outside [a-z0-9_-] are replaced with '-'.
func PeerName(prefix, docType string) string {
	if prefix == "" {
		prefix = DefaultNamePrefix
	}
	var b strings.Builder
	for _, r := range strings.ToLower(docType) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		b.WriteString(pairing.UnknownDocType)
	}
	return prefix + "-" + b.String()
}
