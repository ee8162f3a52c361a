package controller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// DefaultMaxFetchBytes bounds a fetched data document.
const DefaultMaxFetchBytes = 32 << 20

// Fetcher loads the bytes behind a resource handle.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// HTTPFetcher fetches http(s) URLs, file URLs and, when BaseURL is set,
// host-relative paths such as "/files/invoice_01.json".
type HTTPFetcher struct {
	Client   *http.Client
	BaseURL  string
	MaxBytes int64
}

// NewHTTPFetcher returns a fetcher resolving relative handles against baseURL.
func NewHTTPFetcher(baseURL string) *HTTPFetcher {
	return &HTTPFetcher{
		Client:   &http.Client{Timeout: 30 * time.Second},
		BaseURL:  baseURL,
		MaxBytes: DefaultMaxFetchBytes,
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid resource handle %q: %w", ref, err)
	}

	switch u.Scheme {
	case "file":
		return f.readFile(u.Path)
	case "http", "https":
	case "":
		if f.BaseURL == "" {
			return f.readFile(ref)
		}
		base, err := url.Parse(f.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid base url %q: %w", f.BaseURL, err)
		}
		u = base.ResolveReference(u)
	default:
		return nil, fmt.Errorf("unsupported resource scheme %q", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", u, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("failed to fetch %s: status %d", u, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, f.limit()))
}

func (f *HTTPFetcher) readFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()
	return io.ReadAll(io.LimitReader(file, f.limit()))
}

func (f *HTTPFetcher) limit() int64 {
	if f.MaxBytes <= 0 {
		return DefaultMaxFetchBytes
	}
	return f.MaxBytes
}
