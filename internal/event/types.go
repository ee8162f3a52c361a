package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a "category.action" identifier (e.g. "peer.ready").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypePeerSpawned        = "peer.spawned"
	TypePeerReady          = "peer.ready"
	TypePeerClosed         = "peer.closed"
	TypeDocLoaded          = "doc.loaded"
	TypeHighlightDelivered = "highlight.delivered"
	TypeHighlightDropped   = "highlight.dropped"
	TypeFileStored         = "file.stored"
)

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Peer Lifecycle Events
// -----------------------------------------------------------------------------

// PeerSpawnedEvent is emitted when the registry starts a new viewer process.
type PeerSpawnedEvent struct {
	baseEvent
	PeerName string
	DocType  string
	Base     string // pair the peer was opened for
}

// NewPeerSpawnedEvent creates a PeerSpawnedEvent.
func NewPeerSpawnedEvent(peerName, docType, base string) PeerSpawnedEvent {
	return PeerSpawnedEvent{
		baseEvent: newBaseEvent(TypePeerSpawned),
		PeerName:  peerName,
		DocType:   docType,
		Base:      base,
	}
}

// PeerReadyEvent is emitted when a viewer announces READY.
type PeerReadyEvent struct {
	baseEvent
	PeerName string
	PeerID   string // identifier the viewer generated for itself
}

// NewPeerReadyEvent creates a PeerReadyEvent.
func NewPeerReadyEvent(peerName, peerID string) PeerReadyEvent {
	return PeerReadyEvent{
		baseEvent: newBaseEvent(TypePeerReady),
		PeerName:  peerName,
		PeerID:    peerID,
	}
}

// PeerClosedEvent is emitted when the registry notices a peer is gone.
type PeerClosedEvent struct {
	baseEvent
	PeerName string
	DocType  string
}

// NewPeerClosedEvent creates a PeerClosedEvent.
func NewPeerClosedEvent(peerName, docType string) PeerClosedEvent {
	return PeerClosedEvent{
		baseEvent: newBaseEvent(TypePeerClosed),
		PeerName:  peerName,
		DocType:   docType,
	}
}

// DocLoadedEvent is emitted after LOAD_DOC was delivered to a peer.
type DocLoadedEvent struct {
	baseEvent
	PeerName string
	Base     string
}

// NewDocLoadedEvent creates a DocLoadedEvent.
func NewDocLoadedEvent(peerName, base string) DocLoadedEvent {
	return DocLoadedEvent{
		baseEvent: newBaseEvent(TypeDocLoaded),
		PeerName:  peerName,
		Base:      base,
	}
}

// -----------------------------------------------------------------------------
// Highlight Events
// -----------------------------------------------------------------------------

// HighlightDeliveredEvent is emitted when HIGHLIGHT_FIELD reached a peer.
type HighlightDeliveredEvent struct {
	baseEvent
	PeerName string
	Base     string
	FieldKey string
	Retried  bool // delivered by the deferred retry
}

// NewHighlightDeliveredEvent creates a HighlightDeliveredEvent.
func NewHighlightDeliveredEvent(peerName, base, fieldKey string, retried bool) HighlightDeliveredEvent {
	return HighlightDeliveredEvent{
		baseEvent: newBaseEvent(TypeHighlightDelivered),
		PeerName:  peerName,
		Base:      base,
		FieldKey:  fieldKey,
		Retried:   retried,
	}
}

// HighlightDroppedEvent is emitted when a highlight could not be delivered.
type HighlightDroppedEvent struct {
	baseEvent
	Base     string
	FieldKey string
	Reason   string
}

// NewHighlightDroppedEvent creates a HighlightDroppedEvent.
func NewHighlightDroppedEvent(base, fieldKey, reason string) HighlightDroppedEvent {
	return HighlightDroppedEvent{
		baseEvent: newBaseEvent(TypeHighlightDropped),
		Base:      base,
		FieldKey:  fieldKey,
		Reason:    reason,
	}
}

// -----------------------------------------------------------------------------
// Storage Events
// -----------------------------------------------------------------------------

// FileStoredEvent is emitted when a file lands in the upload directory,
// either through POST /upload or by being dropped there directly.
type FileStoredEvent struct {
	baseEvent
	Name string
	URL  string
}

// NewFileStoredEvent creates a FileStoredEvent.
func NewFileStoredEvent(name, url string) FileStoredEvent {
	return FileStoredEvent{
		baseEvent: newBaseEvent(TypeFileStored),
		Name:      name,
		URL:       url,
	}
}
