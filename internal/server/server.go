// Package server provides the HTTP API for kotae.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/metrics"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/rag"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
	"go.uber.org/zap"
)

// requestTimeout bounds a whole request, including model generation.
const requestTimeout = 2 * time.Minute

// Asker answers questions against an ingested document. *rag.Engine
// implements it.
type Asker interface {
	Ask(ctx context.Context, messages []models.ChatMessage) (*rag.Answer, error)
	Index() vector.Searcher
	ModelName() string
}

// Server is the HTTP server for the kotae API.
type Server struct {
	engine  Asker
	store   storage.ConversationStore
	metrics *metrics.Metrics
	config  *config.Config
	logger  *zap.Logger
	router  chi.Router
	server  *http.Server
}

// NewServer creates a server with the given dependencies. store may be nil, in
// which case conversation ids are echoed but no history is kept. A nil
// metrics gets a fresh registry.
func NewServer(
	engine Asker,
	store storage.ConversationStore,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine:  engine,
		store:   store,
		metrics: m,
		config:  cfg,
		logger:  logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/", s.handleRoot)
	r.Post("/chat", s.handleChat)
	r.Get("/health", s.handleHealth)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/conversations/{id}", s.handleGetConversation)
	r.Delete("/api/v1/conversations/{id}", s.handleDeleteConversation)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	return r
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
