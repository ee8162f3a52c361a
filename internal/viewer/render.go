package viewer

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/Iron-Ham/pairview/internal/geometry"
	"github.com/Iron-Ham/pairview/internal/protocol"
	"github.com/Iron-Ham/pairview/internal/tui/styles"
)

const (
	defaultPageWidth  = 48
	defaultPageHeight = 24
	minPageWidth      = 12
	minPageHeight     = 6
)

// TermRenderer draws the page outline and the highlighted region as a
// character grid. The page keeps a portrait aspect and fits the terminal
// when out is one.
type TermRenderer struct {
	out    io.Writer
	width  int
	height int

	mu      sync.Mutex
	doc     *protocol.LoadDoc
	overlay *geometry.Overlay
}

// NewTermRenderer sizes the page from out's terminal, or the defaults when
// out is not a terminal.
func NewTermRenderer(out io.Writer) *TermRenderer {
	w, h := defaultPageWidth, defaultPageHeight
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if tw, th, err := term.GetSize(int(f.Fd())); err == nil {
			w, h = fitPage(tw, th)
		}
	}
	return NewSizedRenderer(out, w, h)
}

// NewSizedRenderer draws a page of the given inner size.
func NewSizedRenderer(out io.Writer, width, height int) *TermRenderer {
	return &TermRenderer{
		out:    out,
		width:  max(width, minPageWidth),
		height: max(height, minPageHeight),
	}
}

// fitPage picks an inner page size for a terminal, leaving room for the
// border and the header lines. Cells are about twice as tall as wide.
func fitPage(cols, rows int) (int, int) {
	h := rows - 5
	w := int(math.Round(float64(h) * 2 / 1.414))
	if w > cols-2 {
		w = cols - 2
		h = int(math.Round(float64(w) * 1.414 / 2))
	}
	return max(w, minPageWidth), max(h, minPageHeight)
}

// Load implements Renderer.
func (r *TermRenderer) Load(doc protocol.LoadDoc) error {
	if doc.SourceURL == "" {
		return fmt.Errorf("document %q has no source", doc.Base)
	}
	r.mu.Lock()
	r.doc = &doc
	r.overlay = nil
	r.mu.Unlock()
	r.draw()
	return nil
}

// Highlight implements Renderer.
func (r *TermRenderer) Highlight(o geometry.Overlay) {
	r.mu.Lock()
	r.overlay = &o
	r.mu.Unlock()
	r.draw()
}

// Clear implements Renderer.
func (r *TermRenderer) Clear() {
	r.mu.Lock()
	r.overlay = nil
	r.mu.Unlock()
}

func (r *TermRenderer) draw() {
	_, _ = io.WriteString(r.out, "\x1b[H\x1b[2J"+r.View()+"\n")
}

// View renders the current state.
func (r *TermRenderer) View() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.doc == nil {
		return styles.Muted.Render("waiting for a document...")
	}

	var b strings.Builder
	b.WriteString(styles.Title.Render(r.doc.Base))
	b.WriteString(" ")
	b.WriteString(styles.Muted.Render("[" + r.doc.DocType + "]"))
	b.WriteString("\n")
	b.WriteString(styles.Muted.Render(r.doc.SourceURL))
	b.WriteString("\n")

	rows := r.grid()
	b.WriteString(styles.Page.Render(strings.Join(rows, "\n")))
	if r.overlay != nil {
		o := r.overlay
		b.WriteString("\n")
		b.WriteString(styles.Muted.Render(fmt.Sprintf("left %.1f%% top %.1f%% width %.1f%% height %.1f%%",
			o.Left, o.Top, o.Width, o.Height)))
	}
	return b.String()
}

// grid returns the page rows with the highlight cells styled.
func (r *TermRenderer) grid() []string {
	x0, y0, x1, y1 := -1, -1, -1, -1
	if r.overlay != nil {
		x0, y0, x1, y1 = cellSpan(*r.overlay, r.width, r.height)
	}

	blank := strings.Repeat(" ", r.width)
	rows := make([]string, r.height)
	for y := range rows {
		if y < y0 || y > y1 {
			rows[y] = blank
			continue
		}
		rows[y] = strings.Repeat(" ", x0) +
			styles.PageMark.Render(strings.Repeat(" ", x1-x0+1)) +
			strings.Repeat(" ", r.width-x1-1)
	}
	return rows
}

// cellSpan maps an overlay in percent onto inclusive cell bounds. Any
// non-empty region covers at least one cell.
func cellSpan(o geometry.Overlay, width, height int) (x0, y0, x1, y1 int) {
	x0 = clampCell(o.Left/100*float64(width), width)
	y0 = clampCell(o.Top/100*float64(height), height)
	x1 = clampCell((o.Left+o.Width)/100*float64(width)-1e-9, width)
	y1 = clampCell((o.Top+o.Height)/100*float64(height)-1e-9, height)
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return x0, y0, x1, y1
}

func clampCell(v float64, n int) int {
	c := int(math.Floor(v))
	if c < 0 {
		return 0
	}
	if c >= n {
		return n - 1
	}
	return c
}
