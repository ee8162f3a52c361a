// Package assemble forwards prompt-assembly requests to the backend and
// turns every upstream failure into an explicit error payload.
package assemble

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Iron-Ham/pairview/internal/errors"
	"github.com/Iron-Ham/pairview/internal/logging"
)

const (
	// DefaultTimeout bounds one upstream call.
	DefaultTimeout = 60 * time.Second

	// DefaultFailureThreshold is the number of consecutive failures that
	// opens the breaker.
	DefaultFailureThreshold = 5

	// DefaultOpenTimeout is how long the breaker stays open.
	DefaultOpenTimeout = 30 * time.Second

	// AssemblePath is appended to the upstream base URL.
	AssemblePath = "/api/assemble"

	maxBodyBytes     = 1 << 20
	maxUpstreamBytes = 4 << 20
)

// Options configures a Proxy.
type Options struct {
	Upstream         string
	Timeout          time.Duration
	FailureThreshold uint32
	OpenTimeout      time.Duration
	Client           *http.Client
	Logger           *logging.Logger
}

// Proxy is the http.Handler for POST /prompt/assemble.
type Proxy struct {
	target  string
	timeout time.Duration
	client  *http.Client
	cb      *gobreaker.CircuitBreaker
	logger  *logging.Logger
}

// NewProxy validates the upstream URL and builds the breaker.
func NewProxy(opts Options) (*Proxy, error) {
	u, err := url.Parse(opts.Upstream)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.NewValidationError("upstream must be an http(s) URL").WithField("assemble.upstream").WithValue(opts.Upstream)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = DefaultFailureThreshold
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = DefaultOpenTimeout
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger = logger.WithComponent("assemble")

	threshold := opts.FailureThreshold
	p := &Proxy{
		target:  strings.TrimRight(u.String(), "/") + AssemblePath,
		timeout: opts.Timeout,
		client:  opts.Client,
		logger:  logger,
	}
	p.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "assemble",
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return p, nil
}

// Target returns the upstream URL requests are forwarded to.
func (p *Proxy) Target() string { return p.target }

// State returns the breaker state ("closed", "half-open", "open").
func (p *Proxy) State() string { return p.cb.State().String() }

// Forward posts body upstream and returns the upstream JSON response.
// Every failure is an *errors.UpstreamError.
func (p *Proxy) Forward(ctx context.Context, body []byte) ([]byte, error) {
	out, err := p.cb.Execute(func() (interface{}, error) {
		return p.call(ctx, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, errors.NewUpstreamError("upstream unavailable", err)
		}
		return nil, err
	}
	return out.([]byte), nil
}

func (p *Proxy) call(ctx context.Context, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.target, bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewUpstreamError("failed to build upstream request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errors.NewUpstreamError("upstream request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBytes))
	if err != nil {
		return nil, errors.NewUpstreamError("failed to read upstream response", err).WithStatus(resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewUpstreamError(upstreamMessage(resp.StatusCode, data), nil).WithStatus(resp.StatusCode)
	}
	if !json.Valid(data) {
		return nil, errors.NewUpstreamError("upstream returned invalid JSON", nil).WithStatus(resp.StatusCode)
	}
	return data, nil
}

// upstreamMessage prefers the "error" or "message" field of a JSON error
// body and falls back to the status text.
func upstreamMessage(status int, body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return fmt.Sprintf("upstream returned %d %s", status, http.StatusText(status))
}

// ServeHTTP forwards the request body untouched. Upstream failures are
// answered with 500 and {"error": "<message>"}.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	out, err := p.Forward(r.Context(), body)
	if err != nil {
		p.logger.Warn("prompt assembly failed", "error", err, "breaker", p.State())
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
