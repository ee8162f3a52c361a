package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Iron-Ham/pairview/internal/geometry"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

func keys(nodes []FieldNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Key
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNormalizeFixture(t *testing.T) {
	nodes, err := Normalize(loadFixture(t, "invoice_01.json"))
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	wantKeys := []string{
		"invoice_number", "total_amount", "currency", "due_date",
		"page_1_el_0", "page_1_el_1", "page_2_el_0",
	}
	if got := keys(nodes); !equalStrings(got, wantKeys) {
		t.Fatalf("keys = %v, want %v", got, wantKeys)
	}

	inv := nodes[0]
	if inv.Value != "INV-2025-0042" {
		t.Errorf("invoice_number value = %q", inv.Value)
	}
	if box, ok := inv.BBox(); !ok || box != (geometry.BBox{0.1, 0.2, 0.4, 0.5}) {
		t.Errorf("invoice_number bbox = %v, %v", box, ok)
	}
	if inv.Confidence == nil || *inv.Confidence != 0.98 {
		t.Errorf("invoice_number confidence = %v", inv.Confidence)
	}

	if nodes[1].Value != "1234.5" {
		t.Errorf("numeric value = %q, want 1234.5", nodes[1].Value)
	}

	if nodes[2].Highlightable() {
		t.Error("currency has no bounding poly and must not be highlightable")
	}

	if box, _ := nodes[3].BBox(); box != (geometry.BBox{0, 0.1, 0.3, 0.15}) {
		t.Errorf("missing x should default to 0, got %v", box)
	}

	if nodes[4].Source != SourceElement || nodes[4].Page != 1 || nodes[4].Value != "ACME Corp" {
		t.Errorf("unexpected first element node: %+v", nodes[4])
	}
	if nodes[5].Highlightable() {
		t.Error("element without boundingBox must not be highlightable")
	}
	if nodes[6].Page != 2 {
		t.Errorf("page = %d, want 2", nodes[6].Page)
	}

	if got := len(Highlightable(nodes)); got != 5 {
		t.Errorf("highlightable nodes = %d, want 5", got)
	}
}

func TestNormalizeShapes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKeys []string
	}{
		{
			name:     "bare object with properties object",
			input:    `{"properties":{"metadataMap":{"a":{"value":"x","bounding_poly":{"normalized_vertices":[{"x":0,"y":0}]}}}}}`,
			wantKeys: []string{"a"},
		},
		{
			name:     "fields on root without properties",
			input:    `{"metadataMap":{"b":{"value":1}},"pages":[{"elements":[{"content":"c"}]}]}`,
			wantKeys: []string{"b", "page_1_el_0"},
		},
		{
			name:     "metadata order preserved",
			input:    `{"metadataMap":{"zeta":{"value":1},"alpha":{"value":2},"mid":{"value":3}}}`,
			wantKeys: []string{"zeta", "alpha", "mid"},
		},
		{
			name:     "empty array",
			input:    `[]`,
			wantKeys: nil,
		},
		{
			name:     "scalar document",
			input:    `"just text"`,
			wantKeys: nil,
		},
		{
			name:     "pages not a list",
			input:    `{"pages":{"elements":[]}}`,
			wantKeys: nil,
		},
		{
			name:     "metadata entry that is a scalar",
			input:    `{"metadataMap":{"flag":true}}`,
			wantKeys: []string{"flag"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes, err := Normalize([]byte(tt.input))
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if got := keys(nodes); !equalStrings(got, tt.wantKeys) {
				t.Errorf("keys = %v, want %v", got, tt.wantKeys)
			}
		})
	}
}

func TestNormalizeInvalidJSON(t *testing.T) {
	if _, err := Normalize([]byte(`{"metadataMap":`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestStringify(t *testing.T) {
	tests := map[string]string{
		`"text"`:         "text",
		`42`:             "42",
		`true`:           "true",
		`null`:           "",
		``:               "",
		`{"a": [1, 2]}`:  `{"a":[1,2]}`,
	}
	for in, want := range tests {
		if got := stringify([]byte(in)); got != want {
			t.Errorf("stringify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFilterAndFind(t *testing.T) {
	nodes := []FieldNode{
		{Key: "invoice_number", Value: "INV-1"},
		{Key: "total", Value: "99.00"},
		{Key: "page_1_el_0", Value: "Invoice header"},
	}

	if got := Filter(nodes, ""); len(got) != 3 {
		t.Errorf("empty filter returned %d nodes", len(got))
	}
	if got := keys(Filter(nodes, "INVOICE")); !equalStrings(got, []string{"invoice_number", "page_1_el_0"}) {
		t.Errorf("Filter(INVOICE) = %v", got)
	}
	if n, ok := Find(nodes, "total"); !ok || n.Value != "99.00" {
		t.Errorf("Find(total) = %+v, %v", n, ok)
	}
	if _, ok := Find(nodes, "missing"); ok {
		t.Error("Find(missing) should fail")
	}
}
