// Package api serves sweep metrics and health over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/helixml/linefit/infrastructure/api/middleware"
)

// StatusFunc reports the progress of the running sweep.
type StatusFunc func() Status

// Status is the body of the health endpoint.
type Status struct {
	Status    string  `json:"status"`
	RunID     string  `json:"run_id,omitempty"`
	RunState  string  `json:"run_state,omitempty"`
	Message   string  `json:"message,omitempty"`
	Total     int     `json:"total"`
	Completed int     `json:"completed"`
	Failed    int     `json:"failed"`
	Best      float64 `json:"best_chi2,omitempty"`
}

// Server exposes metrics and health over HTTP while a sweep runs.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
	addr       string
}

// NewServer creates a new API Server.
func NewServer(addr string, logger *slog.Logger) Server {
	if logger == nil {
		logger = slog.Default()
	}

	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logging(logger))

	return Server{
		router: router,
		addr:   addr,
		logger: logger,
	}
}

// Router returns the chi router for registering routes.
func (s Server) Router() chi.Router {
	return s.router
}

// MountStatus registers GET /metrics and GET /healthz.
// A nil status reports only liveness.
func (s Server) MountStatus(metrics http.Handler, status StatusFunc) {
	s.router.Method(http.MethodGet, "/metrics", metrics)
	s.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		body := Status{Status: "ok"}
		if status != nil {
			body = status()
			if body.Status == "" {
				body.Status = "ok"
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			s.logger.Error("encode health status", slog.String("error", err.Error()))
		}
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting status server", slog.String("addr", s.addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("shutting down status server")
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the server address.
func (s Server) Addr() string {
	return s.addr
}
