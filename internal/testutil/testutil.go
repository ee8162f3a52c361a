// Package testutil provides testing utilities for pairview tests.
package testutil

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// SetupUploadDir creates a temporary upload directory holding files.
// The files map contains names to contents. The directory is automatically
// cleaned up when the test completes.
func SetupUploadDir(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	WriteFiles(t, dir, files)
	return dir
}

// WriteFiles writes each name and content pair under dir, creating parent
// directories as needed.
func WriteFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		fullPath := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", name, err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write file %s: %v", name, err)
		}
	}
}

// Touch creates empty placeholder files under dir.
func Touch(t *testing.T, dir string, names ...string) {
	t.Helper()

	files := make(map[string]string, len(names))
	for _, name := range names {
		files[name] = "{}"
	}
	WriteFiles(t, dir, files)
}

// Field describes one metadata entry of an extracted data fixture.
// A nil Box leaves the field without geometry.
type Field struct {
	Key   string
	Value string
	Box   *[4]float64
}

// Box returns the geometry of a field spanning x0,y0 to x1,y1.
func Box(x0, y0, x1, y1 float64) *[4]float64 {
	return &[4]float64{x0, y0, x1, y1}
}

// ExtractedData renders fields as an extracted data document with a
// metadata map. Field order is preserved.
func ExtractedData(t *testing.T, fields ...Field) string {
	t.Helper()

	var buf []byte
	buf = append(buf, `{"metadataMap":{`...)
	for i, f := range fields {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			t.Fatalf("failed to encode key %q: %v", f.Key, err)
		}
		entry := map[string]any{"value": f.Value}
		if f.Box != nil {
			b := f.Box
			entry["bounding_poly"] = map[string]any{
				"normalized_vertices": []map[string]float64{
					{"x": b[0], "y": b[1]},
					{"x": b[2], "y": b[1]},
					{"x": b[2], "y": b[3]},
					{"x": b[0], "y": b[3]},
				},
			}
		}
		value, err := json.Marshal(entry)
		if err != nil {
			t.Fatalf("failed to encode field %q: %v", f.Key, err)
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, value...)
	}
	buf = append(buf, "}}"...)
	return string(buf)
}

// SkipIfNoShell skips the test if sh is not available.
func SkipIfNoShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

// SkipIfNoTmux skips the test if tmux is not available.
func SkipIfNoTmux(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tmux"); err != nil {
		t.Skip("tmux not available")
	}
}
