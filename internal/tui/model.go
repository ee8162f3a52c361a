// Package tui is the terminal front-end of the host: a pair list, the
// field list of the selected pair, and a status line fed by registry
// events.
package tui

import (
	"context"
	"fmt"
	"slices"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/pairview/internal/event"
	"github.com/Iron-Ham/pairview/internal/extract"
	"github.com/Iron-Ham/pairview/internal/pairing"
	"github.com/Iron-Ham/pairview/internal/peer"
)

// DefaultValueWidth is the column budget for a field value.
const DefaultValueWidth = 48

// Controller is the part of controller.Controller the TUI drives.
type Controller interface {
	Pairs() []pairing.Pair
	Select(ctx context.Context, base string) ([]extract.FieldNode, error)
	Open(ctx context.Context, base string) (peer.HandleInfo, error)
	Click(ctx context.Context, key string) (peer.Outcome, error)
}

type pane int

const (
	panePairs pane = iota
	paneFields
)

// Model is the bubbletea model.
type Model struct {
	ctrl     Controller
	rescanFn func() ([]pairing.Pair, error)
	keys     keyMap

	width      int
	height     int
	valueWidth int

	pairs      []pairing.Pair
	pairCursor int

	selected    string
	fields      []extract.FieldNode
	fieldCursor int

	focus     pane
	filtering bool
	filter    textinput.Model

	status    string
	statusErr bool
}

// Option configures a Model.
type Option func(*Model)

// WithRescan sets the function run by the rescan key. Without it the key
// only re-reads the working set.
func WithRescan(fn func() ([]pairing.Pair, error)) Option {
	return func(m *Model) { m.rescanFn = fn }
}

// WithValueWidth sets the field value column width.
func WithValueWidth(w int) Option {
	return func(m *Model) {
		if w > 0 {
			m.valueWidth = w
		}
	}
}

// NewModel creates the model over ctrl.
func NewModel(ctrl Controller, opts ...Option) Model {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "filter fields"
	ti.CharLimit = 64

	m := Model{
		ctrl:       ctrl,
		keys:       defaultKeyMap(),
		valueWidth: DefaultValueWidth,
		filter:     ti,
		pairs:      ctrl.Pairs(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		return m, tea.Batch(m.refreshPairs(), tick())

	case pairsMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("rescan failed: %v", msg.err))
			return m, nil
		}
		m.setPairs(msg.pairs)
		return m, nil

	case fieldsMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("cannot load %s: %v", msg.base, msg.err))
			return m, nil
		}
		m.selected = msg.base
		m.fields = msg.fields
		m.fieldCursor = 0
		m.focus = paneFields
		m.setStatus(fmt.Sprintf("%s: %d fields", msg.base, len(msg.fields)))
		return m, nil

	case openedMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("open failed: %v", msg.err))
			return m, nil
		}
		m.setStatus(fmt.Sprintf("%s %s for %s", msg.info.Name, msg.info.State, msg.info.Base))
		return m, nil

	case highlightMsg:
		if msg.err != nil {
			m.setError(fmt.Sprintf("%s: %v", msg.key, msg.err))
			return m, nil
		}
		m.setStatus(fmt.Sprintf("%s: %s", msg.key, msg.outcome))
		return m, nil

	case eventMsg:
		if text, isErr := describeEvent(msg.event); text != "" {
			m.status, m.statusErr = text, isErr
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filtering {
		switch msg.Type {
		case tea.KeyEnter:
			m.filtering = false
			m.filter.Blur()
			return m, nil
		case tea.KeyEsc:
			m.filtering = false
			m.filter.Blur()
			m.filter.SetValue("")
			m.fieldCursor = 0
			return m, nil
		}
		var cmd tea.Cmd
		m.filter, cmd = m.filter.Update(msg)
		m.fieldCursor = 0
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Tab):
		if m.focus == panePairs {
			m.focus = paneFields
		} else {
			m.focus = panePairs
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
		return m, nil

	case key.Matches(msg, m.keys.Enter):
		if m.focus == panePairs {
			if p, ok := m.currentPair(); ok {
				return m, m.selectPair(p.Base)
			}
			return m, nil
		}
		if f, ok := m.currentField(); ok {
			return m, m.clickField(f.Key)
		}
		return m, nil

	case key.Matches(msg, m.keys.Open):
		if p, ok := m.currentPair(); ok {
			return m, m.openPair(p.Base)
		}
		return m, nil

	case key.Matches(msg, m.keys.Filter):
		if m.selected == "" {
			return m, nil
		}
		m.focus = paneFields
		m.filtering = true
		return m, m.filter.Focus()

	case key.Matches(msg, m.keys.Rescan):
		m.setStatus("rescanning...")
		return m, m.rescan()
	}
	return m, nil
}

func (m *Model) moveCursor(delta int) {
	if m.focus == panePairs {
		m.pairCursor = clamp(m.pairCursor+delta, len(m.pairs))
		return
	}
	m.fieldCursor = clamp(m.fieldCursor+delta, len(m.visibleFields()))
}

func clamp(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// setPairs installs a working set. A selection whose pair disappeared is
// cleared, matching the controller which drops it on upload.
func (m *Model) setPairs(pairs []pairing.Pair) {
	if slices.Equal(pairs, m.pairs) {
		return
	}
	m.pairs = pairs
	m.pairCursor = clamp(m.pairCursor, len(pairs))
	if m.selected != "" && !slices.ContainsFunc(pairs, func(p pairing.Pair) bool { return p.Base == m.selected }) {
		m.selected = ""
		m.fields = nil
		m.fieldCursor = 0
		m.focus = panePairs
	}
	m.setStatus(fmt.Sprintf("%d pairs", len(pairs)))
}

func (m Model) currentPair() (pairing.Pair, bool) {
	if m.pairCursor < 0 || m.pairCursor >= len(m.pairs) {
		return pairing.Pair{}, false
	}
	return m.pairs[m.pairCursor], true
}

func (m Model) visibleFields() []extract.FieldNode {
	return extract.Filter(m.fields, m.filter.Value())
}

func (m Model) currentField() (extract.FieldNode, bool) {
	visible := m.visibleFields()
	if m.fieldCursor < 0 || m.fieldCursor >= len(visible) {
		return extract.FieldNode{}, false
	}
	return visible[m.fieldCursor], true
}

func (m *Model) setStatus(s string) {
	m.status, m.statusErr = s, false
}

func (m *Model) setError(s string) {
	m.status, m.statusErr = s, true
}

// describeEvent renders a bus event for the status line.
func describeEvent(e event.Event) (string, bool) {
	switch ev := e.(type) {
	case event.PeerSpawnedEvent:
		return fmt.Sprintf("spawned %s for %s", ev.PeerName, ev.Base), false
	case event.PeerReadyEvent:
		return fmt.Sprintf("%s ready", ev.PeerName), false
	case event.PeerClosedEvent:
		return fmt.Sprintf("%s closed", ev.PeerName), true
	case event.DocLoadedEvent:
		return fmt.Sprintf("%s loaded %s", ev.PeerName, ev.Base), false
	case event.HighlightDeliveredEvent:
		if ev.Retried {
			return fmt.Sprintf("highlighted %s (after retry)", ev.FieldKey), false
		}
		return fmt.Sprintf("highlighted %s", ev.FieldKey), false
	case event.HighlightDroppedEvent:
		return fmt.Sprintf("highlight of %s dropped: %s", ev.FieldKey, ev.Reason), true
	case event.FileStoredEvent:
		return fmt.Sprintf("stored %s", ev.Name), false
	}
	return "", false
}
