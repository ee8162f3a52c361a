package peer

import (
	"context"

	"github.com/Iron-Ham/pairview/internal/errors"
	"github.com/Iron-Ham/pairview/internal/event"
	"github.com/Iron-Ham/pairview/internal/geometry"
	"github.com/Iron-Ham/pairview/internal/pairing"
	"github.com/Iron-Ham/pairview/internal/protocol"
)

// Outcome is the immediate result of a highlight request.
type Outcome int

const (
	// OutcomeDelivered means the frame was handed to a connected peer.
	OutcomeDelivered Outcome = iota
	// OutcomeRetrying means a peer was opened and one retry is scheduled.
	OutcomeRetrying
	// OutcomeDropped means the highlight was given up.
	OutcomeDropped
)

// String returns a human-readable string for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeRetrying:
		return "retrying"
	case OutcomeDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// MarshalText renders the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// HighlightRequest asks for a rectangle to be shown on a pair's document.
type HighlightRequest struct {
	Pair     pairing.Pair
	FieldKey string
	BBox     geometry.BBox
}

// Highlight sends HIGHLIGHT_FIELD to the live peer for the pair's doc type.
// A live peer showing another pair is sent LOAD_DOC for req.Pair first.
// With no live peer it calls OpenOrAttach and schedules exactly one more
// attempt after the retry delay; a failed retry drops the highlight.
// A tracked peer that is not connected yet also drops the highlight.
func (r *Registry) Highlight(ctx context.Context, req HighlightRequest) Outcome {
	if name, ok := r.peerFor(req.Pair); ok {
		return r.deliver(name, req, false)
	}

	if _, err := r.OpenOrAttach(ctx, req.Pair); err != nil {
		r.dropped(req, err.Error())
		return OutcomeDropped
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.dropped(req, "registry closed")
		return OutcomeDropped
	}
	r.nextID++
	id := r.nextID
	r.retries[id] = r.sched.AfterFunc(r.cfg.RetryDelay, func() {
		r.mu.Lock()
		delete(r.retries, id)
		r.mu.Unlock()
		r.retry(req)
	})
	r.mu.Unlock()

	r.logger.WithDocType(req.Pair.DocType).Debug("highlight deferred", "field", req.FieldKey, "delay", r.cfg.RetryDelay)
	return OutcomeRetrying
}

func (r *Registry) retry(req HighlightRequest) {
	name, ok := r.peerFor(req.Pair)
	if !ok {
		r.dropped(req, "peer not running")
		return
	}
	r.deliver(name, req, true)
}

// peerFor returns the name of the live peer for pair's doc type, attaching
// it to pair when it is headed for a different one.
func (r *Registry) peerFor(pair pairing.Pair) (string, bool) {
	r.mu.Lock()
	var events []event.Event
	h := r.liveLocked(pair.DocType, &events)
	var name string
	if h != nil {
		if h.pair != pair {
			r.attachLocked(h, pair, &events)
		}
		name = h.Name
	}
	r.mu.Unlock()

	r.publish(events)
	return name, h != nil
}

func (r *Registry) deliver(name string, req HighlightRequest, retried bool) Outcome {
	r.mu.Lock()
	err := r.sendLocked(name, protocol.HighlightField{Base: req.Pair.Base, BBox: req.BBox})
	r.mu.Unlock()

	if err != nil {
		if !errors.IsDropped(err) {
			r.logger.WithPeer(name).Warn("highlight send failed", "error", err)
		}
		r.dropped(req, err.Error())
		return OutcomeDropped
	}
	r.logger.WithPeer(name).Debug("highlight delivered", "field", req.FieldKey, "retried", retried)
	r.publish([]event.Event{event.NewHighlightDeliveredEvent(name, req.Pair.Base, req.FieldKey, retried)})
	return OutcomeDelivered
}

func (r *Registry) dropped(req HighlightRequest, reason string) {
	r.logger.WithDocType(req.Pair.DocType).Info("highlight dropped", "field", req.FieldKey, "reason", reason)
	r.publish([]event.Event{event.NewHighlightDroppedEvent(req.Pair.Base, req.FieldKey, reason)})
}
