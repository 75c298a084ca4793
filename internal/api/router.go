package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/roomlink-io/roomlink/internal/engine"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Post("/light", s.handleLightCommand)
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}

// handleStatus returns a point-in-time snapshot of the device mirror.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.core.Snapshot())
}

// lightCommandRequest is the body of POST /api/v1/light.
type lightCommandRequest struct {
	TagID string `json:"tag_id"`
	Mode  string `json:"mode"`
}

// handleLightCommand submits a light mode change on behalf of a tag.
// Only the current occupant's tag is accepted.
func (s *Server) handleLightCommand(w http.ResponseWriter, r *http.Request) {
	var req lightCommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	err := s.core.SubmitLightCommand(req.TagID, req.Mode)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]any{
			"status": "accepted",
			"mode":   req.Mode,
		})
	case errors.Is(err, engine.ErrEmptyTag):
		writeBadRequest(w, "tag_id is required")
	case errors.Is(err, engine.ErrInvalidMode):
		writeBadRequest(w, "mode must be one of: off, low, med, high")
	case errors.Is(err, engine.ErrNotOccupant):
		writeForbidden(w, "tag is not the current occupant")
	default:
		s.logger.Error("light command failed", "error", err)
		writeInternalError(w, "failed to submit light command")
	}
}
