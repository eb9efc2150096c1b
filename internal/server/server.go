// Package server provides the HTTP API for AstraBot.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/astrabot/internal/agent"
	"github.com/hyperjump/astrabot/internal/app"
	"github.com/hyperjump/astrabot/internal/capability"
	"github.com/hyperjump/astrabot/internal/config"
	"github.com/hyperjump/astrabot/internal/session"
)

const sessionTTL = 2 * time.Hour

// Chat answers messages within a session.
type Chat interface {
	Handle(ctx context.Context, sess *session.Session, message string) (*agent.Reply, error)
	Policy() *agent.Policy
}

// Catalog describes the configured collections.
type Catalog interface {
	Capabilities() []capability.Descriptor
	Status() []app.CollectionStatus
}

// Server is the HTTP server for the AstraBot API.
type Server struct {
	chat        Chat
	catalog     Catalog
	sessions    *session.Manager
	config      *config.ServerConfig
	streamDelay time.Duration
	logger      *zap.Logger

	server   *http.Server
	stopOnce sync.Once
	done     chan struct{}
}

// NewServer creates a server with the given dependencies.
func NewServer(chat Chat, catalog Catalog, sessions *session.Manager, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		chat:        chat,
		catalog:     catalog,
		sessions:    sessions,
		config:      &cfg.Server,
		streamDelay: cfg.Stream.Delay,
		logger:      logger,
		done:        make(chan struct{}),
	}
}

// Router returns the API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/info", s.handleInfo)
		r.Get("/capabilities", s.handleCapabilities)
		r.Get("/status", s.handleStatus)
		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Delete("/", s.handleDeleteSession)
			r.Get("/history", s.handleHistory)
			r.Post("/messages", s.handleMessage)
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go s.pruneSessions()
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

func (s *Server) pruneSessions() {
	ticker := time.NewTicker(sessionTTL / 4)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if n := s.sessions.Prune(sessionTTL); n > 0 {
				s.logger.Info("Pruned idle sessions", zap.Int("count", n))
			}
		}
	}
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.done) })
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
