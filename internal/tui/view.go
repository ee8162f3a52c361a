package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/pairview/internal/tui/styles"
	"github.com/Iron-Ham/pairview/internal/util"
)

const (
	pairPaneWidth = 36
	minHeight     = 10
	// chrome is the lines taken by the title, pane borders and footer.
	chrome = 7
)

// View implements tea.Model.
func (m Model) View() string {
	height := max(m.height, minHeight)
	listHeight := height - chrome

	pairs := m.renderPairs(listHeight)
	fields := m.renderFields(listHeight)

	pairStyle, fieldStyle := styles.Pane, styles.PaneFocused
	if m.focus == panePairs {
		pairStyle, fieldStyle = styles.PaneFocused, styles.Pane
	}
	fieldWidth := max(m.width-pairPaneWidth-6, 20)

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		pairStyle.Width(pairPaneWidth).Render(pairs),
		fieldStyle.Width(fieldWidth).Render(fields),
	)

	var b strings.Builder
	b.WriteString(styles.Title.Render("pairview"))
	b.WriteString("\n")
	b.WriteString(body)
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderPairs(rows int) string {
	var b strings.Builder
	b.WriteString(styles.PaneTitle.Render(fmt.Sprintf("Pairs (%d)", len(m.pairs))))
	b.WriteString("\n")
	if len(m.pairs) == 0 {
		b.WriteString(styles.Muted.Render("no pairs yet; upload files or press r"))
		return b.String()
	}

	start, end := window(m.pairCursor, len(m.pairs), rows)
	for i := start; i < end; i++ {
		p := m.pairs[i]
		label := util.TruncateANSI(p.Base, pairPaneWidth-len(p.DocType)-6)
		if p.Base == m.selected {
			label = "● " + label
		}
		line := label + " " + styles.Badge.Render(p.DocType)
		if i == m.pairCursor && m.focus == panePairs {
			line = styles.ItemActive.Render(label) + " " + styles.Badge.Render(p.DocType)
		} else {
			line = styles.Item.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderFields(rows int) string {
	var b strings.Builder
	if m.selected == "" {
		b.WriteString(styles.PaneTitle.Render("Fields"))
		b.WriteString("\n")
		b.WriteString(styles.Muted.Render("select a pair with enter"))
		return b.String()
	}

	visible := m.visibleFields()
	b.WriteString(styles.PaneTitle.Render(fmt.Sprintf("Fields of %s (%d/%d)", m.selected, len(visible), len(m.fields))))
	b.WriteString("\n")
	if m.filtering || m.filter.Value() != "" {
		b.WriteString(styles.SearchPrompt.Render(m.filter.View()))
		b.WriteString("\n")
		rows--
	}

	start, end := window(m.fieldCursor, len(visible), rows)
	for i := start; i < end; i++ {
		f := visible[i]
		value := util.TruncateANSI(f.Value, m.valueWidth)
		var line string
		switch {
		case i == m.fieldCursor && m.focus == paneFields:
			line = styles.ItemActive.Render(f.Key + "  " + value)
		case !f.Highlightable():
			line = styles.Item.Render(styles.FieldDisabled.Render(f.Key + "  " + value))
		default:
			line = styles.Item.Render(styles.FieldKey.Render(f.Key) + "  " + value)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderStatus() string {
	if m.status == "" {
		return ""
	}
	if m.statusErr {
		return styles.ErrorMsg.Render(m.status)
	}
	return styles.StatusBar.Render(m.status)
}

func (m Model) renderHelp() string {
	parts := make([]string, 0, len(m.keys.help()))
	for _, k := range m.keys.help() {
		h := k.Help()
		parts = append(parts, styles.HelpKey.Render(h.Key)+" "+h.Desc)
	}
	return styles.HelpBar.Render(strings.Join(parts, "  "))
}

// window returns the slice bounds of rows visible around cursor.
func window(cursor, n, rows int) (int, int) {
	if rows <= 0 || n <= rows {
		return 0, n
	}
	start := cursor - rows/2
	if start < 0 {
		start = 0
	}
	if start+rows > n {
		start = n - rows
	}
	return start, start + rows
}
