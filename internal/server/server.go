// Package server is the host's HTTP surface: uploads, stored files, the
// peer websocket endpoint, the prompt-assembly proxy and a JSON API over
// the controller for scripted use.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/yasserelgammal/rate-limiter/limiter"
	"github.com/yasserelgammal/rate-limiter/store"

	"github.com/Iron-Ham/pairview/internal/controller"
	"github.com/Iron-Ham/pairview/internal/errors"
	"github.com/Iron-Ham/pairview/internal/logging"
	"github.com/Iron-Ham/pairview/internal/peer"
	"github.com/Iron-Ham/pairview/internal/storage"
)

const (
	// ServiceName is reported by /health.
	ServiceName = "pairview"

	// uploadBatchFactor caps a whole upload request relative to the
	// per-file limit.
	uploadBatchFactor = 8

	shutdownTimeout = 5 * time.Second
)

// PeerLister exposes the registry state served under /api/peers.
type PeerLister interface {
	Handles() []peer.HandleInfo
	Pending() []string
}

// ChannelLister exposes which peers hold an open websocket.
type ChannelLister interface {
	Connected(name string) bool
	Names() []string
}

// Deps are the components the server routes to.
type Deps struct {
	Controller *controller.Controller
	Store      *storage.Store
	Hub        http.Handler
	Proxy      http.Handler
	Peers      PeerLister
	Channels   ChannelLister
}

// Options configures the server.
type Options struct {
	Addr           string
	MaxUploadBytes int64
	RatePerMinute  int
	Burst          int
	Logger         *logging.Logger
}

// Server is the host HTTP server.
type Server struct {
	opts    Options
	deps    Deps
	limiter *limiter.TokenBucket
	logger  *logging.Logger
	handler http.Handler
}

// New builds the server and its routes.
func New(opts Options, deps Deps) (*Server, error) {
	if deps.Controller == nil || deps.Store == nil {
		return nil, errors.NewValidationError("server requires a controller and a store")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}

	s := &Server{opts: opts, deps: deps, logger: logger.WithComponent("server")}
	if opts.RatePerMinute > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = opts.RatePerMinute
		}
		tb, err := limiter.NewTokenBucket(limiter.Config{
			Rate:     int64(opts.RatePerMinute),
			Duration: time.Minute,
			Burst:    int64(burst),
		}, store.NewMemoryStore(time.Minute))
		if err != nil {
			return nil, errors.NewValidationError("invalid upload rate limit").WithField("upload.rate_per_minute").WithCause(err)
		}
		s.limiter = tb
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("POST /upload", s.rateLimited(http.HandlerFunc(s.handleUpload)))
	mux.Handle("/files/", s.deps.Store.Handler())
	if s.deps.Hub != nil {
		mux.Handle("GET /peer", s.deps.Hub)
	}
	if s.deps.Proxy != nil {
		mux.Handle("POST /prompt/assemble", s.deps.Proxy)
	}
	mux.HandleFunc("GET /api/pairs", s.handlePairs)
	mux.HandleFunc("GET /api/report", s.handleReport)
	mux.HandleFunc("POST /api/pairs/{base}/open", s.handleOpen)
	mux.HandleFunc("GET /api/pairs/{base}/fields", s.handleFields)
	mux.HandleFunc("POST /api/fields/{key}/highlight", s.handleHighlight)
	mux.HandleFunc("GET /api/peers", s.handlePeers)
	return s.logRequests(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.opts.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
		ErrorLog:          slog.NewLogLogger(s.logger.Slog().Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown failed")
		}
		return nil
	}
}

func (s *Server) rateLimited(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)
		if !s.limiter.Allow(key) {
			s.logger.Warn("upload rate limited", "client", key)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "too many uploads, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer, which
// the websocket upgrade needs for hijacking.
func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/peer" {
			// Long-lived websocket; the hub logs its own lifecycle.
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail answers with the status for err. Expected conditions such as a
// missing pair are logged at debug.
func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	switch {
	case status >= http.StatusInternalServerError:
		s.logger.Error("request failed", "status", status, "error", err)
	case errors.IsUserFacing(err):
		s.logger.Warn("request failed", "status", status, "error", err)
	default:
		s.logger.Debug("request rejected", "status", status, "error", err)
	}
	writeError(w, status, err.Error())
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errors.ErrPairNotFound),
		errors.Is(err, errors.ErrFieldNotFound),
		errors.Is(err, errors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrNoSelection), errors.Is(err, errors.ErrNameCollision):
		return http.StatusConflict
	case errors.Is(err, errors.ErrNoGeometry):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrUpstream), errors.Is(err, errors.ErrSpawnFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
