// Package http exposes lesson sessions over a chi-routed JSON API plus a
// websocket feed for realtime message subscription.
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lessonloop/lessonloop"
	"github.com/lessonloop/lessonloop/internal/logging"
	"github.com/lessonloop/lessonloop/pkg/domain"
	"github.com/lessonloop/lessonloop/pkg/ports"
	"github.com/lessonloop/lessonloop/pkg/session"
)

// Server hosts lesson sessions for one script.
type Server struct {
	engine *lessonloop.Engine
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[ports.Key]*session.Orchestrator
	started  map[ports.Key]bool
}

// NewServer wraps an engine.
func NewServer(engine *lessonloop.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{
		engine:   engine,
		logger:   logger,
		sessions: make(map[ports.Key]*session.Orchestrator),
		started:  make(map[ports.Key]bool),
	}
}

// Handler builds the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/lessons/{lesson}/users/{user}", func(r chi.Router) {
		r.Post("/start", s.handleStart)
		r.Get("/messages", s.handleMessages)
		r.Post("/answer", s.handleAnswer)
		r.Post("/choice", s.handleChoice)
		r.Post("/continue", s.handleContinue)
		r.Post("/restart", s.handleRestart)
		r.Get("/ws", s.handleWS)
	})

	return r
}

// Close shuts down every live session.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		sess.Close()
	}
	s.sessions = make(map[ports.Key]*session.Orchestrator)
	s.started = make(map[ports.Key]bool)
}

func keyFrom(r *http.Request) ports.Key {
	return ports.Key{
		UserID:   chi.URLParam(r, "user"),
		LessonID: chi.URLParam(r, "lesson"),
	}
}

// sessionFor returns the live orchestrator for a key, starting one on first
// use so history repair and resume happen before any action.
func (s *Server) sessionFor(r *http.Request) (*session.Orchestrator, error) {
	key := keyFrom(r)

	s.mu.Lock()
	sess, ok := s.sessions[key]
	if !ok {
		sess = s.engine.Session(key)
		s.sessions[key] = sess
	}
	needsStart := !s.started[key]
	s.started[key] = true
	s.mu.Unlock()

	if needsStart {
		if _, err := sess.Start(r.Context()); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

// sessionState is the standard response envelope.
type sessionState struct {
	Messages    []domain.Message `json:"messages"`
	CurrentStep *domain.Step     `json:"currentStep"`
	Completed   bool             `json:"completed"`
}

func (s *Server) writeState(w http.ResponseWriter, sess *session.Orchestrator) {
	s.writeJSON(w, sessionState{
		Messages:    sess.Messages(),
		CurrentStep: sess.CurrentStep(),
		Completed:   sess.Completed(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encode failed", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrAnswerInFlight), errors.Is(err, domain.ErrContinueNotAllowed):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrSessionClosed):
		http.Error(w, err.Error(), http.StatusGone)
	default:
		s.logger.Error("request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFor(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeState(w, sess)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFor(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeState(w, sess)
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Text == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sess, err := s.sessionFor(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := sess.SubmitAnswer(r.Context(), body.Text); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeState(w, sess)
}

func (s *Server) handleChoice(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Choice string `json:"choice"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Choice == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sess, err := s.sessionFor(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := sess.SubmitChoice(r.Context(), body.Choice); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeState(w, sess)
}

func (s *Server) handleContinue(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFor(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := sess.Continue(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeState(w, sess)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessionFor(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if _, err := sess.Restart(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeState(w, sess)
}
