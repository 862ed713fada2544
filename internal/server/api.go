package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ayusman/berrywatch/internal/inspect"
)

// Listing limits for /api/events and /api/reports.
const (
	defaultLimit = 10
	maxLimit     = 100
)

func parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	if n > maxLimit {
		n = maxLimit
	}
	return n, true
}

// handleEvents handles GET /api/events?limit=n, newest first.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}

	events, err := s.config.Store.Events().Recent(limit)
	if err != nil {
		s.config.Log.WithError(err).Error("list events")
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// handleReports handles GET /api/reports?limit=n, newest first.
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}

	reports, err := s.config.Store.Reports().Recent(limit)
	if err != nil {
		s.config.Log.WithError(err).Error("list reports")
		writeError(w, http.StatusInternalServerError, "failed to list reports")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"reports": reports})
}

// handleSummary handles GET /api/summary.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	summary, err := s.config.Reporter.Summarize()
	if err != nil {
		s.config.Log.WithError(err).Error("summarize events")
		writeError(w, http.StatusInternalServerError, "failed to summarize events")
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

type commandRequest struct {
	Command string `json:"command" validate:"required,oneof=commit recent healthy diseased all clear quit"`
}

// handleCommand handles POST /api/commands with {"command": "<name>"}.
// The command runs on the inspection loop at its next frame.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "unknown command")
		return
	}

	cmd := inspect.ParseCommand(req.Command)
	if !s.config.Commands.Submit(cmd) {
		writeError(w, http.StatusServiceUnavailable, "command queue full")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"queued": cmd.String()})
}
