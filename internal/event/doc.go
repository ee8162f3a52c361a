// Package event provides a pub-sub event bus so the peer registry, the
// channel hub, the upload store and the TUI can react to each other
// without direct dependencies.
//
// # Event Categories
//
// Peer lifecycle:
//   - [PeerSpawnedEvent], [PeerReadyEvent], [PeerClosedEvent]
//   - [DocLoadedEvent]
//
// Highlight delivery:
//   - [HighlightDeliveredEvent], [HighlightDroppedEvent]
//
// Storage:
//   - [FileStoredEvent]
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Handlers run synchronously on the
// publishing goroutine and a panicking handler does not stop delivery to
// the others.
//
// # Basic Usage
//
//	bus := event.NewBus(logger)
//	bus.Subscribe(event.TypeHighlightDropped, func(e event.Event) {
//	    dropped := e.(event.HighlightDroppedEvent)
//	    logger.Warn("highlight dropped", "field", dropped.FieldKey)
//	})
//	bus.Publish(event.NewHighlightDroppedEvent("invoice_01", "total", "peer not listening"))
package event
