// Package server implements the TaskPilot HTTP server: account auth, the
// task REST API, and the natural-language command endpoint.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/taskpilot/taskpilot/command"
	"github.com/taskpilot/taskpilot/config"
	"github.com/taskpilot/taskpilot/task"
	"github.com/taskpilot/taskpilot/user"
)

// Server is the TaskPilot HTTP server.
type Server struct {
	cfg     config.Config
	mux     *http.ServeMux
	httpSrv *http.Server
	logger  *slog.Logger

	tasks  task.Store
	users  user.Store
	interp *command.Orchestrator

	// JWT secret caching
	secretOnce      sync.Once
	generatedSecret string

	startTime time.Time
	version   string
}

// New creates a new Server with the given config and logger.
func New(cfg config.Config, ver string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		logger:    logger,
		startTime: time.Now(),
		version:   ver,
	}
}

// SetTaskStore attaches a task store to the server.
func (s *Server) SetTaskStore(store task.Store) {
	s.tasks = store
}

// SetUserStore attaches a user store to the server.
func (s *Server) SetUserStore(store user.Store) {
	s.users = store
}

// SetInterpreter attaches the command orchestrator backing /api/ai/command.
func (s *Server) SetInterpreter(o *command.Orchestrator) {
	s.interp = o
}

// Start registers routes and begins listening.
func (s *Server) Start() error {
	s.registerRoutes()

	addr := s.cfg.Server.Addr
	if addr == "" {
		addr = ":8735"
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 15 * time.Second,
	}
	s.logger.Info("server listening", slog.String("addr", addr))
	return s.httpSrv.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	// Public routes (no auth required)
	s.mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("GET /api/status", s.handleStatus)

	// Protected API, wrapped in auth middleware
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/auth/me", s.handleMe)

	apiMux.HandleFunc("GET /api/tasks", s.listTasks)
	apiMux.HandleFunc("POST /api/tasks", s.createTask)
	apiMux.HandleFunc("GET /api/tasks/{id}", s.getTask)
	apiMux.HandleFunc("PUT /api/tasks/{id}", s.updateTask)
	apiMux.HandleFunc("PATCH /api/tasks/{id}", s.updateTask)
	apiMux.HandleFunc("DELETE /api/tasks/{id}", s.deleteTask)

	apiMux.HandleFunc("GET /api/tasks/today", s.listToday)
	apiMux.HandleFunc("GET /api/tasks/overdue", s.listOverdue)
	apiMux.HandleFunc("GET /api/tasks/upcoming", s.listUpcoming)
	apiMux.HandleFunc("GET /api/tasks/date/{date}", s.listByDate)
	apiMux.HandleFunc("GET /api/tasks/dates-with-tasks", s.datesWithTasks)
	apiMux.HandleFunc("GET /api/tasks/summary", s.taskSummary)
	apiMux.HandleFunc("GET /api/tasks/search", s.searchTasks)
	apiMux.HandleFunc("GET /api/tasks/categories", s.listCategories)
	apiMux.HandleFunc("GET /api/tasks/category/{category}", s.listByCategory)

	apiMux.HandleFunc("POST /api/ai/command", s.handleCommand)

	s.mux.Handle("/api/", s.authMiddleware(apiMux))
}

// handleStatus reports version and uptime without authentication.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version": s.version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
