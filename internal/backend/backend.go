// Package backend is a small prompt-assembly and case-intake service. It
// stands in for the production backend the host proxies to, so the whole
// system can run locally. All state is in memory.
package backend

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/pairview/internal/logging"
)

const (
	// Version is reported by the health endpoint.
	Version = "0.0.1"

	// DefaultModel is used when an assemble request names none.
	DefaultModel = "mistral:tiny"

	// Template is the system prompt every assembled prompt carries.
	Template = "You are a document QA engine. Use provided context and answer strictly in JSON."

	// StatusReceived is the status of a newly created case.
	StatusReceived = "RECEIVED"

	maxBodyBytes = 1 << 20
)

// DefaultFiboTags are attached when an assemble request names none.
var DefaultFiboTags = []string{"Loan", "Rate", "Borrower"}

// Options configures a Server.
type Options struct {
	DefaultModel string
	Logger       *logging.Logger

	// Now and NewID are replaceable for tests.
	Now   func() time.Time
	NewID func() string
}

// Server holds the in-memory case store.
type Server struct {
	model  string
	logger *logging.Logger
	now    func() time.Time
	newID  func() string

	mu    sync.RWMutex
	cases map[string]map[string]any
	order []string
}

// New creates a Server.
func New(opts Options) *Server {
	s := &Server{
		model:  opts.DefaultModel,
		logger: opts.Logger,
		now:    opts.Now,
		newID:  opts.NewID,
		cases:  make(map[string]map[string]any),
	}
	if s.model == "" {
		s.model = DefaultModel
	}
	if s.logger == nil {
		s.logger = logging.NopLogger()
	}
	s.logger = s.logger.WithComponent("backend")
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// Handler returns the service routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/assemble", s.handleAssemble)
	mux.HandleFunc("POST /api/cases", s.handleCreateCase)
	mux.HandleFunc("GET /api/cases", s.handleListCases)
	mux.HandleFunc("GET /api/cases/{id}", s.handleGetCase)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP", "version": Version})
}

func (s *Server) handleAssemble(w http.ResponseWriter, r *http.Request) {
	cfg, ok := readObject(w, r)
	if !ok {
		return
	}

	res := map[string]any{
		"promptId":    s.newID(),
		"model":       s.model,
		"fiboTags":    DefaultFiboTags,
		"template":    Template,
		"assembledAt": s.now().UTC().Format(time.RFC3339),
	}
	if v, ok := cfg["model"]; ok && v != nil {
		res["model"] = v
	}
	if v, ok := cfg["fiboTags"]; ok && v != nil {
		res["fiboTags"] = v
	}

	s.logger.Debug("prompt assembled", "prompt_id", res["promptId"], "model", res["model"])
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	rec, ok := readObject(w, r)
	if !ok {
		return
	}
	id := s.newID()
	rec["caseId"] = id
	rec["status"] = StatusReceived
	rec["createdAt"] = s.now().UTC().Format(time.RFC3339)

	s.mu.Lock()
	s.cases[id] = rec
	s.order = append(s.order, id)
	s.mu.Unlock()

	s.logger.Info("case received", "case_id", id)
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	rec, ok := s.cases[r.PathValue("id")]
	s.mu.RUnlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "case not found"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListCases(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	out := make([]map[string]any, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.cases[id])
	}
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, out)
}

// readObject decodes a JSON object body. An empty body is an empty object.
func readObject(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return nil, false
	}
	obj := map[string]any{}
	if len(data) == 0 {
		return obj, true
	}
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body must be a JSON object"})
		return nil, false
	}
	return obj, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
