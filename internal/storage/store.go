// Package storage keeps uploaded files in a local directory, serves them
// back over HTTP and watches the directory for files dropped in directly.
package storage

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/Iron-Ham/pairview/internal/errors"
	"github.com/Iron-Ham/pairview/internal/event"
	"github.com/Iron-Ham/pairview/internal/logging"
	"github.com/Iron-Ham/pairview/internal/pairing"
)

// DefaultAccept lists the file patterns stored by default.
var DefaultAccept = []string{"*.pdf", "*.json", "*.txt"}

// Options configures a Store.
type Options struct {
	// Dir is the directory files are written to. It is created if missing.
	Dir string

	// BaseURL prefixes file handles, e.g. "/files/".
	BaseURL string

	// Accept holds glob patterns matched case-insensitively against the
	// file name. Empty means DefaultAccept.
	Accept []string

	// MaxBytes caps a single file. Zero means unlimited.
	MaxBytes int64

	Bus    *event.Bus
	Logger *logging.Logger
}

// Store is a flat directory of uploaded files.
type Store struct {
	dir      string
	baseURL  string
	patterns []string
	accept   []glob.Glob
	maxBytes int64
	bus      *event.Bus
	logger   *logging.Logger
}

// NewStore creates the upload directory and compiles the accept patterns.
func NewStore(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, errors.NewValidationError("upload directory is required").WithField("dir")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	patterns := opts.Accept
	if len(patterns) == 0 {
		patterns = DefaultAccept
	}
	compiled := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(strings.ToLower(p))
		if err != nil {
			return nil, errors.NewValidationError("invalid accept pattern").WithField("accept").WithValue(p).WithCause(err)
		}
		compiled = append(compiled, g)
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "/files/"
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	return &Store{
		dir:      opts.Dir,
		baseURL:  baseURL,
		patterns: append([]string(nil), patterns...),
		accept:   compiled,
		maxBytes: opts.MaxBytes,
		bus:      opts.Bus,
		logger:   logger.WithComponent("storage"),
	}, nil
}

// Dir returns the upload directory.
func (s *Store) Dir() string { return s.dir }

// Patterns returns the accept patterns.
func (s *Store) Patterns() []string { return append([]string(nil), s.patterns...) }

// Accepts reports whether a file with this name would be stored.
// Hidden names never match.
func (s *Store) Accepts(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	lower := strings.ToLower(name)
	for _, g := range s.accept {
		if g.Match(lower) {
			return true
		}
	}
	return false
}

// CleanName reduces an uploaded file name to its base name, accepting
// both slash styles. It returns "" for names that cannot be stored.
func CleanName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(filepath.Base(filepath.FromSlash(name)))
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return ""
	}
	return name
}

// URL returns the handle under which name is served.
func (s *Store) URL(name string) string {
	return s.baseURL + url.PathEscape(name)
}

// Put writes r under the cleaned name, replacing any existing file.
func (s *Store) Put(name string, r io.Reader) (pairing.File, error) {
	clean := CleanName(name)
	if !s.Accepts(clean) {
		return pairing.File{}, errors.NewValidationError("file type not accepted").WithField("file").WithValue(name)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return pairing.File{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return pairing.File{}, fmt.Errorf("failed to write %s: %w", clean, err)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		return pairing.File{}, errors.NewValidationError("file too large").WithField("file").WithValue(clean)
	}

	if err := os.Rename(tmpName, filepath.Join(s.dir, clean)); err != nil {
		return pairing.File{}, fmt.Errorf("failed to store %s: %w", clean, err)
	}

	f := pairing.File{Name: clean, URL: s.URL(clean)}
	s.logger.Info("file stored", "name", clean, "bytes", n)
	if s.bus != nil {
		s.bus.Publish(event.NewFileStoredEvent(f.Name, f.URL))
	}
	return f, nil
}

// List returns the accepted files in the directory sorted by name.
func (s *Store) List() ([]pairing.File, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload directory: %w", err)
	}
	var files []pairing.File
	for _, e := range entries {
		if !e.Type().IsRegular() || !s.Accepts(e.Name()) {
			continue
		}
		files = append(files, pairing.File{Name: e.Name(), URL: s.URL(e.Name())})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Handler serves stored files under BaseURL. Directory listings and
// files outside the accept patterns are not served.
func (s *Store) Handler() http.Handler {
	return http.StripPrefix(s.baseURL, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		name := r.URL.Path
		if name == "" || strings.Contains(name, "/") || CleanName(name) != name || !s.Accepts(name) {
			http.NotFound(w, r)
			return
		}

		f, err := os.Open(filepath.Join(s.dir, name))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		defer func() { _ = f.Close() }()

		info, err := f.Stat()
		if err != nil || !info.Mode().IsRegular() {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, name, info.ModTime(), f)
	}))
}
