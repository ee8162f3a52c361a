package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/pairview/internal/event"
	"github.com/Iron-Ham/pairview/internal/extract"
	"github.com/Iron-Ham/pairview/internal/pairing"
	"github.com/Iron-Ham/pairview/internal/peer"
)

// refreshInterval is how often the pair list is re-read, picking up
// uploads made over HTTP.
const refreshInterval = 500 * time.Millisecond

type tickMsg time.Time

// pairsMsg carries a fresh working set.
type pairsMsg struct {
	pairs []pairing.Pair
	err   error
}

// fieldsMsg is the result of selecting a pair.
type fieldsMsg struct {
	base   string
	fields []extract.FieldNode
	err    error
}

type openedMsg struct {
	info peer.HandleInfo
	err  error
}

type highlightMsg struct {
	key     string
	outcome peer.Outcome
	err     error
}

// eventMsg forwards a bus event into the program.
type eventMsg struct {
	event event.Event
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) refreshPairs() tea.Cmd {
	return func() tea.Msg {
		return pairsMsg{pairs: m.ctrl.Pairs()}
	}
}

func (m Model) rescan() tea.Cmd {
	if m.rescanFn == nil {
		return m.refreshPairs()
	}
	return func() tea.Msg {
		pairs, err := m.rescanFn()
		return pairsMsg{pairs: pairs, err: err}
	}
}

func (m Model) selectPair(base string) tea.Cmd {
	return func() tea.Msg {
		fields, err := m.ctrl.Select(context.Background(), base)
		return fieldsMsg{base: base, fields: fields, err: err}
	}
}

func (m Model) openPair(base string) tea.Cmd {
	return func() tea.Msg {
		info, err := m.ctrl.Open(context.Background(), base)
		return openedMsg{info: info, err: err}
	}
}

func (m Model) clickField(key string) tea.Cmd {
	return func() tea.Msg {
		outcome, err := m.ctrl.Click(context.Background(), key)
		return highlightMsg{key: key, outcome: outcome, err: err}
	}
}
