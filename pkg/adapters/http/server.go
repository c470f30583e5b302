package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/internal/logging"
	"github.com/aretw0/canopy/pkg/domain"
	"github.com/aretw0/canopy/pkg/elements"
	"github.com/aretw0/canopy/pkg/middleware"
	"github.com/aretw0/canopy/pkg/session"
)

// ServerOptions configures NewHandler. Every field is optional.
type ServerOptions struct {
	// Runner is mounted in front of every route.
	Runner *middleware.Runner
	// Sessions enables the /sessions API and /events streams.
	Sessions *session.Manager
	// Gatherer enables /metrics.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// Server exposes session roots over HTTP and streams their changes.
type Server struct {
	Sessions *session.Manager
	Streams  *StreamManager
	logger   *slog.Logger

	mu      sync.Mutex
	watched map[string]func()
}

// NewHandler creates the dev server: the middleware chain, health and info
// endpoints, Prometheus metrics and the sessions API.
func NewHandler(opts ServerOptions) http.Handler {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	server := &Server{
		Sessions: opts.Sessions,
		Streams:  NewStreamManager(opts.Logger),
		logger:   opts.Logger,
		watched:  make(map[string]func()),
	}

	r := chi.NewRouter()
	r.Use(enableCORS)
	if opts.Runner != nil {
		r.Use(Middleware(opts.Runner, WithLogger(opts.Logger)))
	}

	r.Get("/health", server.GetHealth)
	r.Get("/info", server.GetInfo)
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}
	if opts.Sessions != nil {
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", server.ListSessions)
			r.Post("/", server.OpenSession)
			r.Get("/{id}", server.GetSession)
			r.Delete("/{id}", server.DeleteSession)
			r.Post("/{id}/refetch", server.Refetch)
			r.Post("/{id}/call", server.Call)
		})
		r.Get("/events", server.SubscribeEvents)
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-Id")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SessionView is the JSON shape of a session.
type SessionView struct {
	ID       string          `json:"id"`
	Path     string          `json:"path"`
	Elements domain.Elements `json:"elements"`
}

// OpenRequest is the body of POST /sessions.
type OpenRequest struct {
	ID    string     `json:"id,omitempty"`
	Path  string     `json:"path"`
	Query url.Values `json:"query,omitempty"`
}

// RefetchRequest is the body of POST /sessions/{id}/refetch.
type RefetchRequest struct {
	Path  string     `json:"path"`
	Query url.Values `json:"query,omitempty"`
}

// CallRequest is the body of POST /sessions/{id}/call.
type CallRequest struct {
	FuncID string `json:"func_id"`
	Args   []any  `json:"args,omitempty"`
}

// CallResponse is returned by POST /sessions/{id}/call.
type CallResponse struct {
	Value any `json:"value"`
}

// params maps an optional query onto fetch params: nil stays a plain GET.
func params(q url.Values) any {
	if q == nil {
		return nil
	}
	return q
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles the GET /info request.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{
		"app":     "canopy-http",
		"version": strings.TrimSpace(canopy.Version),
	})
}

// ListSessions handles the GET /sessions request.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Sessions.List(r.Context())
	if err != nil {
		s.fail(w, "List sessions failed", http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, ids)
}

// OpenSession handles the POST /sessions request.
func (s *Server) OpenSession(w http.ResponseWriter, r *http.Request) {
	var body OpenRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, "Invalid request body", http.StatusBadRequest, err)
		return
	}

	root, err := s.Sessions.Open(r.Context(), body.ID, body.Path, params(body.Query))
	if err != nil {
		s.fail(w, "Open session failed", http.StatusInternalServerError, err)
		return
	}
	tree, err := root.Elements().Wait(r.Context())
	if err != nil {
		s.fail(w, "Resolve elements failed", statusFor(err), err)
		return
	}
	s.watch(root, tree)
	writeJSON(w, s.logger, http.StatusCreated, SessionView{ID: root.ID(), Path: root.Path(), Elements: tree})
}

// GetSession handles the GET /sessions/{id} request.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	root, ok := s.root(w, r)
	if !ok {
		return
	}
	s.respondTree(w, r, root, root.Elements(), http.StatusOK)
}

// DeleteSession handles the DELETE /sessions/{id} request.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.unwatch(id)
	if err := s.Sessions.Delete(r.Context(), id); err != nil {
		s.fail(w, "Delete session failed", http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Refetch handles the POST /sessions/{id}/refetch request.
func (s *Server) Refetch(w http.ResponseWriter, r *http.Request) {
	root, ok := s.root(w, r)
	if !ok {
		return
	}
	var body RefetchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, "Invalid request body", http.StatusBadRequest, err)
		return
	}
	merged := root.Refetch(r.Context(), body.Path, params(body.Query))
	s.respondTree(w, r, root, merged, http.StatusOK)
}

// Call handles the POST /sessions/{id}/call request.
func (s *Server) Call(w http.ResponseWriter, r *http.Request) {
	root, ok := s.root(w, r)
	if !ok {
		return
	}
	var body CallRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, "Invalid request body", http.StatusBadRequest, err)
		return
	}
	value, err := root.CallRemote(r.Context(), body.FuncID, body.Args...)
	if err != nil {
		s.fail(w, "Call failed", statusFor(err), err)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, CallResponse{Value: value})
}

func (s *Server) root(w http.ResponseWriter, r *http.Request) (*session.Root, bool) {
	id := chi.URLParam(r, "id")
	root, ok := s.Sessions.Get(id)
	if !ok {
		http.Error(w, fmt.Sprintf("session not found: %s", id), http.StatusNotFound)
		return nil, false
	}
	return root, true
}

func (s *Server) respondTree(w http.ResponseWriter, r *http.Request, root *session.Root, f *elements.Future, status int) {
	tree, err := f.Wait(r.Context())
	if err != nil {
		s.fail(w, "Resolve elements failed", statusFor(err), err)
		return
	}
	writeJSON(w, s.logger, status, SessionView{ID: root.ID(), Path: root.Path(), Elements: tree})
}

func (s *Server) fail(w http.ResponseWriter, msg string, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, "err", err)
	} else {
		s.logger.Warn(msg, "err", err)
	}
	http.Error(w, fmt.Sprintf("%s: %v", msg, err), status)
}

// statusFor maps server errors through and everything else to 502.
func statusFor(err error) int {
	var perr *domain.ProtocolError
	if errors.As(err, &perr) {
		return perr.StatusCode
	}
	if errors.Is(err, context.Canceled) {
		return http.StatusRequestTimeout
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Response encode failed", "err", err)
	}
}

// watch broadcasts a diff to the session's subscribers each time its tree
// settles, starting from initial. Trees superseded before they settle are skipped.
func (s *Server) watch(root *session.Root, initial domain.Elements) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.watched[root.ID()]; ok {
		return
	}

	var (
		mu   sync.Mutex
		last = initial
	)
	publish := func(f *elements.Future) {
		tree, err := f.Wait(context.Background())
		if err != nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if root.Elements() != f {
			return
		}
		diff := domain.Diff(last, tree)
		last = tree
		if diff == nil {
			s.logger.Debug("Session: No diff calculated", "session_id", root.ID())
			return
		}
		if data, err := json.Marshal(diff); err == nil {
			s.Streams.Broadcast(root.ID(), string(data))
		}
	}
	s.watched[root.ID()] = root.Subscribe(func(f *elements.Future) {
		go publish(f)
	})
}

func (s *Server) unwatch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.watched[id]; ok {
		cancel()
		delete(s.watched, id)
	}
}
