package storage

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/pairview/internal/errors"
	"github.com/Iron-Ham/pairview/internal/event"
	"github.com/Iron-Ham/pairview/internal/pairing"
)

func newStore(t *testing.T, opts Options) *Store {
	t.Helper()
	if opts.Dir == "" {
		opts.Dir = filepath.Join(t.TempDir(), "uploads")
	}
	s, err := NewStore(opts)
	require.NoError(t, err)
	return s
}

func TestCleanName(t *testing.T) {
	tests := map[string]string{
		"invoice.pdf":              "invoice.pdf",
		"dir/sub/lease.json":       "lease.json",
		`C:\Users\me\fds_1.txt`:    "fds_1.txt",
		"../../etc/passwd":         "passwd",
		"..":                       "",
		"":                         "",
		"  spaced name.pdf  ":      "spaced name.pdf",
		"/absolute/guarantee.json": "guarantee.json",
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanName(in), "CleanName(%q)", in)
	}
}

func TestAccepts(t *testing.T) {
	s := newStore(t, Options{})

	assert.True(t, s.Accepts("invoice.pdf"))
	assert.True(t, s.Accepts("INVOICE.PDF"))
	assert.True(t, s.Accepts("notes.txt"))
	assert.False(t, s.Accepts("script.sh"))
	assert.False(t, s.Accepts(".hidden.pdf"))
	assert.False(t, s.Accepts(""))

	custom := newStore(t, Options{Accept: []string{"scan_*.pdf"}})
	assert.True(t, custom.Accepts("scan_01.pdf"))
	assert.False(t, custom.Accepts("invoice.pdf"))
}

func TestNewStore_InvalidPattern(t *testing.T) {
	_, err := NewStore(Options{Dir: t.TempDir(), Accept: []string{"[unclosed"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	_, err = NewStore(Options{})
	assert.Error(t, err)
}

func TestPutAndList(t *testing.T) {
	bus := event.NewBus(nil)
	var stored []string
	bus.Subscribe(event.TypeFileStored, func(e event.Event) {
		stored = append(stored, e.(event.FileStoredEvent).Name)
	})
	s := newStore(t, Options{Bus: bus})

	f, err := s.Put("some/dir/invoice_01.pdf", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, pairing.File{Name: "invoice_01.pdf", URL: "/files/invoice_01.pdf"}, f)

	_, err = s.Put("invoice_01.json", strings.NewReader(`{}`))
	require.NoError(t, err)

	_, err = s.Put("run.sh", strings.NewReader("echo"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "ignored.exe"), []byte("x"), 0o644))

	files, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []pairing.File{
		{Name: "invoice_01.json", URL: "/files/invoice_01.json"},
		{Name: "invoice_01.pdf", URL: "/files/invoice_01.pdf"},
	}, files)
	assert.Equal(t, []string{"invoice_01.pdf", "invoice_01.json"}, stored)

	data, err := os.ReadFile(filepath.Join(s.Dir(), "invoice_01.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
}

func TestPut_TooLarge(t *testing.T) {
	s := newStore(t, Options{MaxBytes: 4})

	_, err := s.Put("big.txt", strings.NewReader("12345"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")

	files, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = s.Put("small.txt", strings.NewReader("1234"))
	assert.NoError(t, err)
}

func TestPut_EscapesURL(t *testing.T) {
	s := newStore(t, Options{BaseURL: "/files"})
	f, err := s.Put("lease final.pdf", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "/files/lease%20final.pdf", f.URL)
}

func TestHandler(t *testing.T) {
	s := newStore(t, Options{})
	_, err := s.Put("invoice_01.json", strings.NewReader(`{"a":1}`))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "secret.key"), []byte("k"), 0o644))

	mux := http.NewServeMux()
	mux.Handle("/files/", s.Handler())
	srv := httptest.NewServer(mux)
	defer srv.Close()

	get := func(path string) (int, string) {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	code, body := get("/files/invoice_01.json")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, `{"a":1}`, body)

	code, _ = get("/files/secret.key")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = get("/files/")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = get("/files/missing.pdf")
	assert.Equal(t, http.StatusNotFound, code)

	resp, err := http.Post(srv.URL+"/files/invoice_01.json", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
