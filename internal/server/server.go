// ABOUTME: HTTP + websocket server exposing the orchestrator's UI boundary
// ABOUTME: Submit/cancel/mode over JSON endpoints, ordered event stream over /ws
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"

	"github.com/ratatoskr-ai/ratatoskr/internal/core"
	"github.com/ratatoskr-ai/ratatoskr/internal/errs"
	"github.com/ratatoskr-ai/ratatoskr/internal/models"
)

// Server fronts the orchestrator for UI clients
type Server struct {
	orchestrator *core.Orchestrator
	httpServer   *http.Server
}

// NewServer creates a server listening on addr
func NewServer(orchestrator *core.Orchestrator, addr string) *Server {
	s := &Server{orchestrator: orchestrator}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/turns", s.handleSubmit)
	mux.HandleFunc("/api/cancel", s.handleCancel)
	mux.HandleFunc("/api/mode", s.handleMode)

	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	return s
}

// ListenAndServe blocks serving requests until Shutdown
func (s *Server) ListenAndServe() error {
	log.Printf("[Server] Listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Handler exposes the route mux (used by tests)
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Shutdown stops the HTTP server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type submitRequest struct {
	Kind  string `json:"kind"`
	Text  string `json:"text,omitempty"`
	Audio string `json:"audio,omitempty"` // base64-encoded
}

type submitResponse struct {
	TurnID int64 `json:"turn_id"`
}

// handleSubmit enqueues a turn from a JSON body
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var turn *models.Turn
	var err error
	switch models.InputKind(req.Kind) {
	case models.InputText:
		turn, err = s.orchestrator.SubmitText(req.Text)
	case models.InputAudio:
		audio, decodeErr := base64.StdEncoding.DecodeString(req.Audio)
		if decodeErr != nil {
			writeError(w, http.StatusBadRequest, "audio must be base64-encoded")
			return
		}
		turn, err = s.orchestrator.SubmitAudio(audio)
	default:
		writeError(w, http.StatusBadRequest, "kind must be \"text\" or \"audio\"")
		return
	}

	if err != nil {
		if errs.KindOf(err) == errs.KindUnsupportedInputKind {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, submitResponse{TurnID: turn.ID})
}

// handleCancel aborts the currently running turn
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	cancelled := s.orchestrator.CancelCurrent()
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

type modeBody struct {
	Mode string `json:"mode"`
}

// handleMode reads or switches the interaction mode
func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, modeBody{Mode: string(s.orchestrator.GetMode())})
	case http.MethodPut, http.MethodPost:
		var body modeBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		m, err := models.ParseMode(body.Mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.orchestrator.SetMode(m)
		writeJSON(w, http.StatusOK, modeBody{Mode: string(m)})
	default:
		writeError(w, http.StatusMethodNotAllowed, "GET or PUT required")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
