// Package backendtest provides an in-process fake of the simulator backend for tests.
package backendtest

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"github.com/verte-zerg/presim/internal/model"
)

// Request is one call observed by the fake.
type Request struct {
	Method string
	Path   string
	Body   string
}

type failure struct {
	status int
	body   string
}

// Server is a fake backend serving the console REST contract.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	config   map[string]any
	entities []model.EntityRef
	status   map[string]any
	requests []Request
	failures map[string]failure
	holds    []hold
}

type hold struct {
	arrived chan struct{}
	release chan struct{}
}

// New starts a fake backend with a fresh-install configuration and closes it on test cleanup.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		config:   map[string]any{},
		status:   map[string]any{"running": false, "preview": []any{}},
		failures: map[string]failure{},
	}
	s.Server = httptest.NewServer(s.router())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.record)
	r.HandleFunc("/api/entities", s.handleEntities).Methods(http.MethodGet)
	r.HandleFunc("/api/config", s.handleGetConfig).Methods(http.MethodGet)
	r.HandleFunc("/api/config", s.handlePostConfig).Methods(http.MethodPost)
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/{action:train|start|stop|step}", s.handleAction).Methods(http.MethodPost)
	return r
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Body: string(body)})
		f, failing := s.failures[r.Method+" "+r.URL.Path]
		s.mu.Unlock()
		if failing {
			w.WriteHeader(f.status)
			_, _ = io.WriteString(w, f.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleEntities(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	list := append([]model.EntityRef{}, s.entities...)
	s.mu.Unlock()
	writeJSON(w, list)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	cfg := cloneMap(s.config)
	s.mu.Unlock()
	writeJSON(w, map[string]any{"config": cfg})
}

func (s *Server) handlePostConfig(w http.ResponseWriter, r *http.Request) {
	var cfg map[string]any
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "invalid config: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()
	writeJSON(w, map[string]any{"ok": true, "config": cfg})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	st := cloneMap(s.status)
	var h *hold
	if len(s.holds) > 0 {
		h = &s.holds[0]
		s.holds = s.holds[1:]
	}
	s.mu.Unlock()
	if h != nil {
		close(h.arrived)
		<-h.release
	}
	writeJSON(w, st)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]
	s.mu.Lock()
	switch action {
	case "start":
		s.status["running"] = true
	case "stop":
		s.status["running"] = false
	}
	s.mu.Unlock()
	writeJSON(w, map[string]any{"ok": true, "action": action})
}

// SetConfig replaces the stored configuration with raw JSON-compatible fields.
func (s *Server) SetConfig(cfg map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cloneMap(cfg)
}

// Config returns the stored configuration.
func (s *Server) Config() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMap(s.config)
}

// SetEntities replaces the registry listing.
func (s *Server) SetEntities(refs ...model.EntityRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = append([]model.EntityRef{}, refs...)
}

// SetStatus replaces the status document served by GET /api/status.
func (s *Server) SetStatus(status map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = cloneMap(status)
}

// Fail makes method+path answer with the given status and body.
func (s *Server) Fail(method, path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = failure{status: status, body: body}
}

// Heal removes a failure installed with Fail.
func (s *Server) Heal(method, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, method+" "+path)
}

// HoldNextStatus delays the next status request. The request captures the
// status current on arrival, closes arrived, and answers once release is closed.
func (s *Server) HoldNextStatus() (arrived <-chan struct{}, release chan<- struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := hold{arrived: make(chan struct{}), release: make(chan struct{})}
	s.holds = append(s.holds, h)
	return h.arrived, h.release
}

// Requests returns every call observed so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request{}, s.requests...)
}

// Paths returns "METHOD path" for every call observed so far.
func (s *Server) Paths() []string {
	reqs := s.Requests()
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.Method + " " + r.Path
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func cloneMap(in map[string]any) map[string]any {
	raw, err := json.Marshal(in)
	if err != nil {
		return map[string]any{}
	}
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return out
}
