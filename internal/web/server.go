package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/advisorloop/autoengine/internal/config"
	"github.com/advisorloop/autoengine/internal/logger"
	"github.com/advisorloop/autoengine/internal/metrics"
	"github.com/advisorloop/autoengine/internal/scheduler"
	"github.com/advisorloop/autoengine/internal/storage"
)

// Server exposes the engine controls the dashboard's Start/Stop/Run-Cycle
// buttons call, plus read endpoints and Prometheus metrics.
type Server struct {
	httpServer *http.Server
	engine     *scheduler.Engine
	repo       *storage.Repository
	config     *config.Config
	logger     *logger.Logger
}

func NewServer(engine *scheduler.Engine, repo *storage.Repository, m *metrics.Metrics, cfg *config.Config, log *logger.Logger) *Server {
	s := &Server{
		engine: engine,
		repo:   repo,
		config: cfg,
		logger: log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/engine/start", s.handleStart)
	mux.HandleFunc("POST /api/engine/stop", s.handleStop)
	mux.HandleFunc("POST /api/engine/run-cycle", s.handleRunCycle)
	mux.HandleFunc("GET /api/engine/status", s.handleStatus)
	mux.HandleFunc("GET /api/positions", s.handlePositions)
	mux.HandleFunc("GET /api/automations", s.handleListAutomations)
	mux.HandleFunc("POST /api/automations", s.handleCreateAutomation)
	mux.HandleFunc("PUT /api/automations/{id}", s.handleUpdateAutomation)
	mux.HandleFunc("POST /api/automations/{id}/pause", s.handlePauseAutomation)
	mux.HandleFunc("POST /api/automations/{id}/resume", s.handleResumeAutomation)
	mux.HandleFunc("GET /api/cycles", s.handleCycles)
	mux.HandleFunc("GET /api/trades", s.handleTrades)
	mux.HandleFunc("GET /api/account", s.handleAccount)
	mux.Handle("GET /metrics", m.Handler())

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Web.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// Handler returns the route table, primarily for serving through httptest.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	s.logger.Info("web server starting", "port", s.config.Web.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
