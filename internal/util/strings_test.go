package util

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestOneLine(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"INV-001", "INV-001"},
		{"  Acme\nGmbH\t Berlin ", "Acme GmbH Berlin"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := OneLine(tt.input); got != tt.want {
			t.Errorf("OneLine(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string unchanged", "invoice_01", 20, "invoice_01"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"long string truncated", "hello world", 8, "hello..."},
		{"tiny limit returns ellipsis", "hello", 3, "..."},
		{"negative limit returns ellipsis", "hello", -1, "..."},
		{"multibyte runes counted once", "Größe der Fläche", 8, "Größe..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestTruncateANSI(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxWidth int
		want     string
	}{
		{"fits", "EUR", 10, "EUR"},
		{"truncated", "Total amount due", 10, "Total a..."},
		{"newlines flattened", "line one\nline two", 20, "line one line two"},
		{"tiny width", "anything", 2, "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateANSI(tt.input, tt.maxWidth); got != tt.want {
				t.Errorf("TruncateANSI(%q, %d) = %q, want %q", tt.input, tt.maxWidth, got, tt.want)
			}
		})
	}
}

func TestTruncateANSIStyled(t *testing.T) {
	styled := lipgloss.NewStyle().Bold(true).Render("a fairly long field value")
	got := TruncateANSI(styled, 12)
	if w := lipgloss.Width(got); w > 12 {
		t.Errorf("TruncateANSI() width = %d, want <= 12", w)
	}
}
