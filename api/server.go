package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/killallgit/podcast-dl/api/types"
	"github.com/killallgit/podcast-dl/pkg/config"
)

// Per-client budget for history requests
const (
	historyRequestsPerSecond = 10
	historyBurst             = 20
)

// Server represents the HTTP server
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	limiter    *RateLimiter

	// Dependencies for handlers
	dependencies *types.Dependencies
}

// NewServer creates a new HTTP server for cfg
func NewServer(cfg config.ServerConfig, deps *types.Dependencies) *Server {
	if deps == nil {
		deps = &types.Dependencies{}
	}

	// Create Gin engine with recovery middleware only
	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		engine:       engine,
		limiter:      NewRateLimiter(historyRequestsPerSecond, historyBurst),
		dependencies: deps,
		httpServer: &http.Server{
			Addr:           fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:        engine,
			ReadTimeout:    cfg.ReadTimeout,
			WriteTimeout:   cfg.WriteTimeout,
			IdleTimeout:    cfg.ReadTimeout,
			MaxHeaderBytes: 1 << 20, // 1 MB
		},
	}
}

// Engine returns the Gin engine for testing
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Initialize sets up middleware and routes
func (s *Server) Initialize() {
	s.engine.Use(RequestLogger())
	s.engine.Use(CORS())
	RegisterRoutes(s.engine, s.dependencies, s.limiter)
}

// Start serves until Shutdown. A clean shutdown returns nil.
func (s *Server) Start() error {
	slog.Info("API server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.httpServer.Shutdown(ctx)
}
