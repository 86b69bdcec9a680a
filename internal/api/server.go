// File path: internal/api/server.go
package api

import (
	"encoding/json"
	"expvar"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/smpleo/leochat/internal/chat"
	"github.com/smpleo/leochat/internal/common"
	"github.com/smpleo/leochat/internal/ingest"
	"github.com/smpleo/leochat/internal/store"
	"github.com/smpleo/leochat/internal/vector"
)

// Server exposes the chatbot backend over HTTP: chat turns, conversation
// management, document ingestion, vector index administration, and user
// accounts.
type Server struct {
	router       chi.Router
	store        *store.Store
	vectors      vector.Store
	orchestrator *chat.Orchestrator
	pipeline     *ingest.Pipeline
	docsDir      string
}

// Config carries server-level settings.
type Config struct {
	DocsDir string
}

// NewServer wires the HTTP surface over the given collaborators.
func NewServer(st *store.Store, vectors vector.Store, orchestrator *chat.Orchestrator, pipeline *ingest.Pipeline, cfg Config) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		store:        st,
		vectors:      vectors,
		orchestrator: orchestrator,
		pipeline:     pipeline,
		docsDir:      cfg.DocsDir,
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Post("/v1/auth/register", s.handleRegister)
	s.router.Post("/v1/auth/login", s.handleLogin)

	s.router.Post("/v1/chat", s.handleChat)
	s.router.Get("/v1/conversations", s.handleListConversations)
	s.router.Get("/v1/conversations/{session}", s.handleGetConversation)
	s.router.Get("/v1/conversations/{session}/history", s.handleHistory)
	s.router.Put("/v1/conversations/{session}/title", s.handleUpdateTitle)
	s.router.Delete("/v1/conversations/{session}", s.handleDeleteConversation)

	s.router.Post("/v1/ingest", s.handleIngest)
	s.router.Delete("/v1/vectors", s.handleDeleteVectors)

	s.router.Get("/v1/users", s.handleListUsers)
	s.router.Get("/v1/users/{id}", s.handleGetUser)
	s.router.Put("/v1/users/{id}", s.handleUpdateUser)
	s.router.Delete("/v1/users/{id}", s.handleDeleteUser)

	s.router.Get("/v1/logs", s.handleLogs)
	s.router.Get("/debug/vars", expvar.Handler().ServeHTTP)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
