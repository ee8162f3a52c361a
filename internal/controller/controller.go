// Package controller wires user actions to the pairing engine, the field
// normalizer and the peer registry. It holds the working set of pairs,
// the selected pair and that pair's field list.
package controller

import (
	"context"
	"sync"

	"github.com/Iron-Ham/pairview/internal/errors"
	"github.com/Iron-Ham/pairview/internal/extract"
	"github.com/Iron-Ham/pairview/internal/logging"
	"github.com/Iron-Ham/pairview/internal/pairing"
	"github.com/Iron-Ham/pairview/internal/peer"
)

// Registry is the part of peer.Registry the controller drives.
type Registry interface {
	OpenOrAttach(ctx context.Context, pair pairing.Pair) (peer.HandleInfo, error)
	Highlight(ctx context.Context, req peer.HighlightRequest) peer.Outcome
}

// Controller is safe for concurrent use by the HTTP server and the TUI.
type Controller struct {
	engine   *pairing.Engine
	registry Registry
	fetcher  Fetcher
	logger   *logging.Logger

	mu       sync.RWMutex
	files    []pairing.File
	pairs    []pairing.Pair
	selected *pairing.Pair
	fields   []extract.FieldNode
}

// New creates a Controller.
func New(engine *pairing.Engine, registry Registry, fetcher Fetcher, logger *logging.Logger) *Controller {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Controller{
		engine:   engine,
		registry: registry,
		fetcher:  fetcher,
		logger:   logger.WithComponent("controller"),
	}
}

// Upload replaces the working set with the pairs formed from files and
// clears the selection.
func (c *Controller) Upload(files []pairing.File) []pairing.Pair {
	pairs := c.engine.Pair(files)

	c.mu.Lock()
	c.files = append([]pairing.File(nil), files...)
	c.pairs = pairs
	c.selected = nil
	c.fields = nil
	c.mu.Unlock()

	c.logger.Info("working set replaced", "files", len(files), "pairs", len(pairs))
	return append([]pairing.Pair(nil), pairs...)
}

// Report pairs the current working set with orphan diagnostics.
func (c *Controller) Report() pairing.Report {
	c.mu.RLock()
	files := append([]pairing.File(nil), c.files...)
	c.mu.RUnlock()
	return c.engine.Report(files)
}

// Pairs returns the current working set.
func (c *Controller) Pairs() []pairing.Pair {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]pairing.Pair(nil), c.pairs...)
}

// Pair looks up a pair of the working set by base.
func (c *Controller) Pair(base string) (pairing.Pair, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pairLocked(base)
}

func (c *Controller) pairLocked(base string) (pairing.Pair, bool) {
	for _, p := range c.pairs {
		if p.Base == base {
			return p, true
		}
	}
	return pairing.Pair{}, false
}

// Open opens or attaches the viewer peer for the pair.
func (c *Controller) Open(ctx context.Context, base string) (peer.HandleInfo, error) {
	pair, ok := c.Pair(base)
	if !ok {
		return peer.HandleInfo{}, errors.NewNotFoundError("pair", base).WithCause(errors.ErrPairNotFound)
	}
	return c.registry.OpenOrAttach(ctx, pair)
}

// Select fetches the pair's data document, normalizes it and makes it the
// current field list.
func (c *Controller) Select(ctx context.Context, base string) ([]extract.FieldNode, error) {
	pair, ok := c.Pair(base)
	if !ok {
		return nil, errors.NewNotFoundError("pair", base).WithCause(errors.ErrPairNotFound)
	}

	raw, err := c.fetcher.Fetch(ctx, pair.DataURL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch data for %s", base)
	}
	nodes, err := extract.Normalize(raw)
	if err != nil {
		return nil, errors.NewValidationError("data document is not valid JSON").
			WithField("dataUrl").WithValue(pair.DataURL).WithCause(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// The working set may have been replaced while fetching.
	current, ok := c.pairLocked(base)
	if !ok || current != pair {
		return nil, errors.NewNotFoundError("pair", base).WithCause(errors.ErrPairNotFound)
	}
	c.selected = &current
	c.fields = nodes

	c.logger.Debug("pair selected", "base", base, "fields", len(nodes), "highlightable", len(extract.Highlightable(nodes)))
	return append([]extract.FieldNode(nil), nodes...), nil
}

// Selected returns the selected pair.
func (c *Controller) Selected() (pairing.Pair, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.selected == nil {
		return pairing.Pair{}, false
	}
	return *c.selected, true
}

// Fields returns the field list of the selected pair.
func (c *Controller) Fields() []extract.FieldNode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]extract.FieldNode(nil), c.fields...)
}

// Click requests a highlight for the field with the given key in the
// selected pair. A field without geometry returns errors.ErrNoGeometry and
// leaves the registry untouched.
func (c *Controller) Click(ctx context.Context, key string) (peer.Outcome, error) {
	c.mu.RLock()
	selected := c.selected
	node, found := extract.Find(c.fields, key)
	c.mu.RUnlock()

	if selected == nil {
		return peer.OutcomeDropped, errors.ErrNoSelection
	}
	if !found {
		return peer.OutcomeDropped, errors.NewNotFoundError("field", key).WithCause(errors.ErrFieldNotFound)
	}
	box, ok := node.BBox()
	if !ok {
		return peer.OutcomeDropped, errors.ErrNoGeometry
	}

	outcome := c.registry.Highlight(ctx, peer.HighlightRequest{Pair: *selected, FieldKey: key, BBox: box})
	c.logger.Debug("field clicked", "base", selected.Base, "field", key, "outcome", outcome.String())
	return outcome, nil
}
