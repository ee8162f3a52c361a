package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	pverrors "github.com/Iron-Ham/pairview/internal/errors"
	"github.com/Iron-Ham/pairview/internal/event"
	"github.com/Iron-Ham/pairview/internal/extract"
	"github.com/Iron-Ham/pairview/internal/geometry"
	"github.com/Iron-Ham/pairview/internal/pairing"
	"github.com/Iron-Ham/pairview/internal/peer"
)

type fakeController struct {
	pairs    []pairing.Pair
	fields   map[string][]extract.FieldNode
	opened   []string
	clicked  []string
	clickErr error
}

func (c *fakeController) Pairs() []pairing.Pair { return c.pairs }

func (c *fakeController) Select(_ context.Context, base string) ([]extract.FieldNode, error) {
	f, ok := c.fields[base]
	if !ok {
		return nil, pverrors.ErrPairNotFound
	}
	return f, nil
}

func (c *fakeController) Open(_ context.Context, base string) (peer.HandleInfo, error) {
	c.opened = append(c.opened, base)
	return peer.HandleInfo{DocType: "invoice", Name: "pairview-viewer-invoice", State: peer.StateSpawning, Base: base}, nil
}

func (c *fakeController) Click(_ context.Context, key string) (peer.Outcome, error) {
	c.clicked = append(c.clicked, key)
	if c.clickErr != nil {
		return peer.OutcomeDropped, c.clickErr
	}
	return peer.OutcomeDelivered, nil
}

func box() *geometry.BBox {
	b := geometry.BBox{0.1, 0.2, 0.4, 0.5}
	return &b
}

func newFake() *fakeController {
	return &fakeController{
		pairs: []pairing.Pair{
			{Base: "invoice_01", DocType: "invoice"},
			{Base: "lease_a", DocType: "lease"},
		},
		fields: map[string][]extract.FieldNode{
			"invoice_01": {
				{Key: "invoice_number", Value: "INV-001", Geometry: box(), Source: extract.SourceMetadata},
				{Key: "currency", Value: "EUR", Source: extract.SourceMetadata},
				{Key: "page_1_el_0", Value: "Total", Geometry: box(), Source: extract.SourceElement, Page: 1},
			},
		},
	}
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

// step applies msg and runs any resulting command once, feeding its
// message back into the model.
func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd == nil {
		return m
	}
	out := cmd()
	if _, ok := out.(tea.QuitMsg); ok {
		return m
	}
	if out == nil {
		return m
	}
	next, _ = m.Update(out)
	return next.(Model)
}

func TestSelectPairLoadsFields(t *testing.T) {
	m := NewModel(newFake())

	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.selected != "invoice_01" {
		t.Fatalf("selected = %q, want invoice_01", m.selected)
	}
	if len(m.fields) != 3 {
		t.Errorf("fields = %d, want 3", len(m.fields))
	}
	if m.focus != paneFields {
		t.Error("focus should move to the field pane after selecting")
	}
}

func TestSelectFailureShowsError(t *testing.T) {
	m := NewModel(newFake())
	m = step(t, m, keyRune('j'))
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	if m.selected != "" {
		t.Errorf("selected = %q, want none", m.selected)
	}
	if !m.statusErr || !strings.Contains(m.status, "lease_a") {
		t.Errorf("status = %q (err=%v)", m.status, m.statusErr)
	}
}

func TestHighlightField(t *testing.T) {
	ctrl := newFake()
	m := NewModel(ctrl)
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if len(ctrl.clicked) != 1 || ctrl.clicked[0] != "invoice_number" {
		t.Fatalf("clicked = %v", ctrl.clicked)
	}
	if m.status != "invoice_number: delivered" {
		t.Errorf("status = %q", m.status)
	}

	ctrl.clickErr = pverrors.ErrNoGeometry
	m = step(t, m, keyRune('j'))
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if !m.statusErr || !strings.Contains(m.status, "currency") {
		t.Errorf("status = %q (err=%v)", m.status, m.statusErr)
	}
}

func TestOpenKey(t *testing.T) {
	ctrl := newFake()
	m := NewModel(ctrl)
	m = step(t, m, keyRune('o'))

	if len(ctrl.opened) != 1 || ctrl.opened[0] != "invoice_01" {
		t.Fatalf("opened = %v", ctrl.opened)
	}
	if !strings.Contains(m.status, "pairview-viewer-invoice spawning") {
		t.Errorf("status = %q", m.status)
	}
}

func TestTabSwitchesPane(t *testing.T) {
	m := NewModel(newFake())
	m = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.focus != paneFields {
		t.Fatal("tab should focus the field pane")
	}
	m = step(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.focus != panePairs {
		t.Fatal("tab should return to the pair pane")
	}
}

func TestFilterFields(t *testing.T) {
	m := NewModel(newFake())

	m = step(t, m, keyRune('/'))
	if m.filtering {
		t.Fatal("filter needs a selected pair")
	}

	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = updateModel(m, keyRune('/'))
	if !m.filtering {
		t.Fatal("/ should start filtering")
	}
	for _, r := range "tot" {
		m, _ = updateModel(m, keyRune(r))
	}
	visible := m.visibleFields()
	if len(visible) != 1 || visible[0].Key != "page_1_el_0" {
		t.Errorf("visible = %+v", visible)
	}

	m, _ = updateModel(m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.filtering || len(m.visibleFields()) != 3 {
		t.Errorf("esc should clear the filter, visible = %d", len(m.visibleFields()))
	}
}

func updateModel(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestPairsRefreshClearsStaleSelection(t *testing.T) {
	m := NewModel(newFake())
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	m, _ = updateModel(m, pairsMsg{pairs: []pairing.Pair{{Base: "lease_a", DocType: "lease"}}})
	if m.selected != "" || m.fields != nil {
		t.Errorf("selection should be cleared, got %q", m.selected)
	}
	if m.focus != panePairs {
		t.Error("focus should return to pairs")
	}

	m, _ = updateModel(m, pairsMsg{err: errors.New("boom")})
	if !m.statusErr {
		t.Error("rescan error should be shown")
	}
}

func TestRescanUsesRescanFunc(t *testing.T) {
	called := false
	m := NewModel(newFake(), WithRescan(func() ([]pairing.Pair, error) {
		called = true
		return []pairing.Pair{{Base: "fds_7", DocType: "fds"}}, nil
	}))
	m = step(t, m, keyRune('r'))

	if !called {
		t.Fatal("rescan func not called")
	}
	if len(m.pairs) != 1 || m.pairs[0].Base != "fds_7" {
		t.Errorf("pairs = %+v", m.pairs)
	}
}

func TestQuit(t *testing.T) {
	m := NewModel(newFake())
	_, cmd := m.Update(keyRune('q'))
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestEventsUpdateStatus(t *testing.T) {
	tests := []struct {
		event   event.Event
		want    string
		wantErr bool
	}{
		{event.NewPeerSpawnedEvent("pv-invoice", "invoice", "invoice_01"), "spawned pv-invoice for invoice_01", false},
		{event.NewPeerReadyEvent("pv-invoice", "id"), "pv-invoice ready", false},
		{event.NewHighlightDeliveredEvent("pv-invoice", "invoice_01", "total", true), "highlighted total (after retry)", false},
		{event.NewHighlightDroppedEvent("invoice_01", "total", "peer not running"), "highlight of total dropped: peer not running", true},
		{event.NewPeerClosedEvent("pv-invoice", "invoice"), "pv-invoice closed", true},
	}
	for _, tt := range tests {
		m := NewModel(newFake())
		m, _ = updateModel(m, eventMsg{event: tt.event})
		if m.status != tt.want || m.statusErr != tt.wantErr {
			t.Errorf("status = %q (err=%v), want %q (err=%v)", m.status, m.statusErr, tt.want, tt.wantErr)
		}
	}
}

func TestViewRendersPanes(t *testing.T) {
	m := NewModel(newFake(), WithValueWidth(10))
	m, _ = updateModel(m, tea.WindowSizeMsg{Width: 120, Height: 30})
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	view := ansi.Strip(m.View())
	for _, want := range []string{"Pairs (2)", "invoice_01", "lease", "Fields of invoice_01 (3/3)", "invoice_number", "INV-001"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestWindow(t *testing.T) {
	tests := []struct {
		cursor, n, rows int
		start, end      int
	}{
		{0, 5, 10, 0, 5},
		{0, 20, 10, 0, 10},
		{10, 20, 10, 5, 15},
		{19, 20, 10, 10, 20},
	}
	for _, tt := range tests {
		start, end := window(tt.cursor, tt.n, tt.rows)
		if start != tt.start || end != tt.end {
			t.Errorf("window(%d, %d, %d) = (%d, %d), want (%d, %d)", tt.cursor, tt.n, tt.rows, start, end, tt.start, tt.end)
		}
	}
}
