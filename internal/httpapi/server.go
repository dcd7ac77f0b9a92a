// Package httpapi exposes the conversation engine to the web UI: JSON
// endpoints for session lifecycle and learner actions, and a WebSocket feed
// of change notifications per session.
package httpapi

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/Bualoitech/learnliko/internal/conversation"
	"github.com/Bualoitech/learnliko/internal/conversation/engine"
	"github.com/Bualoitech/learnliko/internal/conversation/feed"
	"github.com/Bualoitech/learnliko/internal/conversation/recap"
	"github.com/Bualoitech/learnliko/internal/health"
	"github.com/Bualoitech/learnliko/internal/observe"
)

// maxRecordingBytes bounds one uploaded recording. WebM/Opus at speech
// bitrates stays well under this for a single utterance.
const maxRecordingBytes = 16 << 20

// EngineFactory builds a ready engine for a new session. The server owns
// the returned engine for the session's lifetime.
type EngineFactory func(cfg conversation.SessionConfig) (*engine.Engine, error)

// ServerConfig assembles a [Server].
type ServerConfig struct {
	// NewEngine creates the engine for each new conversation. Required.
	NewEngine EngineFactory

	// Recaps resolves published recap results. Required.
	Recaps *recap.Computer

	// Feed is the change-notification hub shared by every engine the
	// factory creates. Required for the events endpoint.
	Feed *feed.Feed

	// Health serves liveness/readiness probes. Optional.
	Health *health.Handler

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Logger defaults to [slog.Default].
	Logger *slog.Logger
}

// Server is the HTTP surface. It owns the registry of live engines keyed by
// session ID. Safe for concurrent use.
type Server struct {
	newEngine EngineFactory
	recaps    *recap.Computer
	feed      *feed.Feed
	health    *health.Handler
	metrics   *observe.Metrics
	log       *slog.Logger

	mu      sync.RWMutex
	engines map[string]*engine.Engine
}

// NewServer validates cfg and returns a ready server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.NewEngine == nil {
		return nil, fmt.Errorf("httpapi: config: engine factory is required")
	}
	if cfg.Recaps == nil {
		return nil, fmt.Errorf("httpapi: config: recap computer is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		newEngine: cfg.NewEngine,
		recaps:    cfg.Recaps,
		feed:      cfg.Feed,
		health:    cfg.Health,
		metrics:   cfg.Metrics,
		log:       cfg.Logger.With("component", "httpapi"),
		engines:   make(map[string]*engine.Engine),
	}, nil
}

// Handler returns the full route tree. The WebSocket events route is mounted
// outside the instrumentation middleware: the status-recording wrapper does
// not implement http.Hijacker, which the WebSocket upgrade needs.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /conversation", s.handleCreate)
	api.HandleFunc("GET /conversation/{id}", s.handleSnapshot)
	api.HandleFunc("DELETE /conversation/{id}", s.handleDelete)
	api.HandleFunc("POST /conversation/{id}/recording", s.handleRecording)
	api.HandleFunc("POST /conversation/{id}/hint", s.handleHint)
	api.HandleFunc("POST /conversation/{id}/reset", s.handleReset)
	api.HandleFunc("GET /conversation/{id}/recap", s.handleRecap)
	api.Handle("GET /metrics", observe.MetricsHandler())
	if s.health != nil {
		s.health.Register(api)
	}

	root := http.NewServeMux()
	root.HandleFunc("GET /conversation/{id}/events", s.handleEvents)
	root.Handle("/", observe.Middleware(s.metrics)(api))
	return root
}

// lookup resolves a session ID to its engine.
func (s *Server) lookup(id string) (*engine.Engine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.engines[id]
	return e, ok
}

// ┌─────────────────────────────────────────────────────────────────────────┐
// │ Handlers                                                                │
// └─────────────────────────────────────────────────────────────────────────┘

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	eng, err := s.newEngine(req.sessionConfig())
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := eng.Initialize(r.Context()); err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	id := eng.Session().ID()
	s.mu.Lock()
	s.engines[id] = eng
	s.mu.Unlock()
	s.metrics.ActiveSessions.Add(r.Context(), 1)

	s.log.InfoContext(r.Context(), "conversation created", "session", id)
	writeJSON(w, http.StatusCreated, snapshotOf(eng, s.recaps))
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	eng, ok := s.lookup(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, errUnknownSession)
		return
	}
	writeJSON(w, http.StatusOK, snapshotOf(eng, s.recaps))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.mu.Lock()
	_, ok := s.engines[id]
	delete(s.engines, id)
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, errUnknownSession)
		return
	}
	s.metrics.ActiveSessions.Add(r.Context(), -1)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecording(w http.ResponseWriter, r *http.Request) {
	eng, ok := s.lookup(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, errUnknownSession)
		return
	}

	recording, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRecordingBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	audioRef := r.URL.Query().Get("audioRef")

	if err := eng.SubmitRecording(r.Context(), audioRef, recording); err != nil {
		s.log.ErrorContext(r.Context(), "recording submission failed",
			"session", eng.Session().ID(), "error", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotOf(eng, s.recaps))
}

func (s *Server) handleHint(w http.ResponseWriter, r *http.Request) {
	eng, ok := s.lookup(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, errUnknownSession)
		return
	}
	if err := eng.RevealHint(); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotOf(eng, s.recaps))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	eng, ok := s.lookup(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, errUnknownSession)
		return
	}
	eng.Reset()
	if err := eng.Initialize(r.Context()); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, snapshotOf(eng, s.recaps))
}

func (s *Server) handleRecap(w http.ResponseWriter, r *http.Request) {
	eng, ok := s.lookup(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, errUnknownSession)
		return
	}
	res := s.recaps.Result(eng.Session().ID())
	if res == nil {
		writeError(w, http.StatusNotFound, errors.New("httpapi: recap not available yet"))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// statusFor maps engine and session errors onto HTTP status codes. State
// violations are conflicts; an exhausted bot-reply loop and any other
// collaborator failure are upstream failures.
func statusFor(err error) int {
	var failed *engine.BotReplyFailedError
	var collab *engine.CollaboratorError
	switch {
	case errors.As(err, &failed), errors.As(err, &collab):
		return http.StatusBadGateway
	case errors.Is(err, engine.ErrAlreadyInitialized),
		errors.Is(err, engine.ErrSessionFinished),
		errors.Is(err, conversation.ErrUninitializedSession),
		errors.Is(err, conversation.ErrNoActiveGoal):
		return http.StatusConflict
	case errors.Is(err, conversation.ErrMissingUserContext):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

var errUnknownSession = errors.New("httpapi: unknown session")

// SessionCount reports the number of live sessions, for readiness checks.
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.engines)
}
