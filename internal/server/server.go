// Package server provides the HTTP surface of berrywatch: live view, event
// queries, operator commands and the collector endpoint for field nodes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/berrywatch/internal/inspect"
	"github.com/ayusman/berrywatch/internal/store"
	"github.com/ayusman/berrywatch/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

// CommandSubmitter queues operator commands for the inspection loop.
type CommandSubmitter interface {
	Submit(cmd inspect.Command) bool
}

// Config holds the server configuration. Routes whose dependency is nil are not registered.
type Config struct {
	Store     *store.Store
	Reporter  *inspect.Reporter
	Hub       *Hub
	Commands  CommandSubmitter
	Telemetry func() telemetry.Stats
	StreamFPS float64
	Log       logrus.FieldLogger
}

// Server represents the HTTP server for berrywatch.
type Server struct {
	config   Config
	mux      *http.ServeMux
	validate *validator.Validate
	start    time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Log == nil {
		config.Log = logrus.StandardLogger()
	}
	s := &Server{
		config:   config,
		mux:      http.NewServeMux(),
		validate: validator.New(),
		start:    time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil {
		s.mux.HandleFunc("/api/events", s.handleEvents)
		s.mux.HandleFunc("/api/reports", s.handleReports)
		s.mux.Handle("/nuevo", NewCollectorHandler(s.config.Store.Reports(), s.validate, s.config.Log))
	}

	if s.config.Reporter != nil {
		s.mux.HandleFunc("/api/summary", s.handleSummary)
	}

	if s.config.Commands != nil {
		s.mux.HandleFunc("/api/commands", s.handleCommand)
	}

	if s.config.Hub != nil {
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Hub, s.config.StreamFPS))
		s.mux.Handle("/api/detections", NewDetectionsHandler(s.config.Hub, s.config.Log))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Telemetry != nil {
		response["telemetry"] = s.config.Telemetry()
	}
	if s.config.Hub != nil {
		snap := s.config.Hub.Latest()
		response["frames"] = snap.Seq
		response["mode"] = snap.Mode.String()
	}

	writeJSON(w, http.StatusOK, response)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
// Request contexts derive from ctx, so long-lived streams end with it.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.config.Log.WithField("addr", ln.Addr().String()).Info("HTTP server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			// connections still open after the grace period are dropped
			s.config.Log.WithError(err).Warn("HTTP shutdown timed out, closing connections")
			if errors.Is(err, context.DeadlineExceeded) {
				return srv.Close()
			}
			return err
		}
		return nil
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
