package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/lazypower/recall/internal/decay"
	"github.com/lazypower/recall/internal/store"
)

// Server is the recall HTTP API server.
type Server struct {
	db      *store.DB
	engine  *decay.Engine
	log     zerolog.Logger
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server over the given database and decay engine.
func New(db *store.DB, engine *decay.Engine, log zerolog.Logger, version string) *Server {
	s := &Server{
		db:      db,
		engine:  engine,
		log:     log.With().Str("component", "server").Logger(),
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/sessions", s.handleListSessions)
		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/{sessionID}", s.handleGetSession)
		r.Get("/sessions/{sessionID}/messages", s.handleGetMessages)
		r.Post("/sessions/{sessionID}/messages", s.handleStoreMessage)
		r.Get("/sessions/{sessionID}/stats", s.handleGetStats)
		r.Post("/sessions/{sessionID}/status", s.handleSetStatus)

		r.Post("/memories", s.handleCreateMemory)
		r.Get("/memories/review", s.handleReviewQueue)
		r.Post("/memories/{memoryID}/touch", s.handleTouchMemory)
		r.Post("/decay", s.handleRunDecay)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
		"db":      s.db != nil,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the store error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case store.IsValidation(err):
		status = http.StatusBadRequest
	case store.IsNotFound(err):
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
