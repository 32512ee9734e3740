// Package api exposes a running session over HTTP and WebSocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"vehicle-remote/internal/core"
	"vehicle-remote/internal/logger"
	"vehicle-remote/internal/protocol"
	"vehicle-remote/internal/storage"
	"vehicle-remote/internal/types"
)

// Controller is the part of a session the server drives.
type Controller interface {
	Send(ctx context.Context, intent protocol.Intent) error
	Bridge() core.StateReader
	Info() core.Info
}

// CommandLog lists journaled commands.
type CommandLog interface {
	RecentCommands(limit int) ([]storage.CommandRecord, error)
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

const writeWait = 2 * time.Second

type Server struct {
	addr    string
	ctl     Controller
	journal CommandLog
	logger  *logger.Logger
	server  *http.Server

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func NewServer(addr string, ctl Controller, journal CommandLog, l *logger.Logger) *Server {
	return &Server{
		addr:    addr,
		ctl:     ctl,
		journal: journal,
		logger:  l,
		clients: make(map[*wsClient]struct{}),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/session", s.handleSession)
	mux.HandleFunc("POST /api/command", s.handleCommand)
	mux.HandleFunc("GET /api/commands", s.handleCommands)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{Addr: s.addr, Handler: s.Handler()}
	s.logger.Infof("HTTP server listening on %s", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for c := range s.clients {
		c.close()
	}
	s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type stateResponse struct {
	Seq   uint64             `json:"seq"`
	State types.VehicleState `json:"state"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st, seq := s.ctl.Bridge().Snapshot()
	writeJSON(w, http.StatusOK, stateResponse{Seq: seq, State: st})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctl.Info())
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	intent, err := req.Intent()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.ctl.Send(r.Context(), intent); err != nil {
		writeError(w, statusForSendError(err), err)
		return
	}
	st, seq := s.ctl.Bridge().Snapshot()
	writeJSON(w, http.StatusOK, stateResponse{Seq: seq, State: st})
}

func statusForSendError(err error) int {
	switch {
	case errors.Is(err, core.ErrNotRunning):
		return http.StatusServiceUnavailable
	case errors.Is(err, protocol.ErrUnknownDirection), errors.Is(err, protocol.ErrUnknownIntent):
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusOK, []storage.CommandRecord{})
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}
	recs, err := s.journal.RecentCommands(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if recs == nil {
		recs = []storage.CommandRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}
