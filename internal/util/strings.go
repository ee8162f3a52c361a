// Package util holds small string helpers for terminal output.
package util

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Ellipsis marks truncated text.
const Ellipsis = "..."

// OneLine collapses runs of whitespace, including newlines, into single
// spaces so a field value fits on one row.
func OneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TruncateString truncates s to maxLen runes, ending in an ellipsis when
// cut. It ignores ANSI escapes and wide characters; use TruncateANSI for
// styled terminal output.
func TruncateString(s string, maxLen int) string {
	if maxLen <= len(Ellipsis) {
		return Ellipsis
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-len(Ellipsis)]) + Ellipsis
}

// TruncateANSI flattens s to one line and truncates it to maxWidth visual
// columns, keeping escape sequences intact.
func TruncateANSI(s string, maxWidth int) string {
	if maxWidth <= len(Ellipsis) {
		return Ellipsis
	}
	s = OneLine(s)
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	// ansi.Truncate counts the tail in the final width
	return ansi.Truncate(s, maxWidth, Ellipsis)
}
