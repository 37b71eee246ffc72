// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/gesture_lock/internal/acquisition"
	"github.com/relabs-tech/gesture_lock/internal/events"
	"github.com/relabs-tech/gesture_lock/internal/storage"
	"github.com/relabs-tech/gesture_lock/internal/ui"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local network tool
	},
}

// StatusResponse is served by /api/status.
type StatusResponse struct {
	Status   ui.Status `json:"status"`
	State    string    `json:"state"`
	Enrolled bool      `json:"enrolled"`
}

// WSEvent is pushed to websocket clients.
type WSEvent struct {
	Type    string               `json:"type"` // status, session, error
	Status  *ui.Status           `json:"status,omitempty"`
	Session *acquisition.Session `json:"session,omitempty"`
	Message string               `json:"message,omitempty"`
}

// WSMessage is what a websocket client may send.
type WSMessage struct {
	Action string `json:"action"` // enroll, authenticate
}

// SessionLog lists recorded sessions, newest first.
type SessionLog interface {
	RecentSessions(limit int) ([]storage.SessionRecord, error)
}

// WebDeps is what the web server reads and drives.
type WebDeps struct {
	Board    *ui.Board
	State    func() acquisition.State
	Enrolled func() bool
	Raise    func(events.Request, string)
	Sessions SessionLog   // nil disables /api/sessions
	Metrics  http.Handler // nil disables /metrics
	Static   string       // directory served at /, "" disables
}

// WebServer serves the lock status over HTTP and pushes changes over a
// websocket.
type WebServer struct {
	deps WebDeps
	hub  *hub
	mux  *http.ServeMux
}

func NewWebServer(deps WebDeps) *WebServer {
	s := &WebServer{deps: deps, hub: newHub(), mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/sessions", s.handleSessions)
	s.mux.HandleFunc("POST /api/request/{kind}", s.handleRequest)
	s.mux.HandleFunc("/ws", s.handleWS)
	if deps.Metrics != nil {
		s.mux.Handle("GET /metrics", deps.Metrics)
	}
	if deps.Static != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(deps.Static)))
	}
	return s
}

func (s *WebServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ShowStatus pushes a status change to websocket clients.
func (s *WebServer) ShowStatus(st ui.Status) {
	s.hub.broadcast(WSEvent{Type: "status", Status: &st})
}

// SessionDone pushes a finished session to websocket clients.
func (s *WebServer) SessionDone(sess acquisition.Session) {
	s.hub.broadcast(WSEvent{Type: "session", Session: &sess})
}

// Run listens on addr until ctx is done.
func (s *WebServer) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		s.hub.closeAll()
	}()

	log.Printf("web: listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *WebServer) status() StatusResponse {
	resp := StatusResponse{Status: s.deps.Board.Current()}
	if s.deps.State != nil {
		resp.State = s.deps.State().String()
	}
	if s.deps.Enrolled != nil {
		resp.Enrolled = s.deps.Enrolled()
	}
	return resp
}

func (s *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *WebServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions == nil {
		http.Error(w, "session log disabled", http.StatusServiceUnavailable)
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	recs, err := s.deps.Sessions.RecentSessions(limit)
	if err != nil {
		log.Printf("web: sessions: %v", err)
		http.Error(w, "session log unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *WebServer) handleRequest(w http.ResponseWriter, r *http.Request) {
	req, err := events.ParseRequest(r.PathValue("kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.deps.Raise(req, "web")
	writeJSON(w, http.StatusAccepted, map[string]string{"request": req.String()})
}

func (s *WebServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	c := s.hub.add(conn)
	defer s.hub.remove(c)

	st := s.deps.Board.Current()
	c.send(WSEvent{Type: "status", Status: &st})

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("web: websocket error: %v", err)
			}
			return
		}
		req, err := events.ParseRequest(msg.Action)
		if err != nil {
			c.send(WSEvent{Type: "error", Message: err.Error()})
			continue
		}
		s.deps.Raise(req, "web")
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

// wsClient owns one connection; only its writer goroutine writes to it.
type wsClient struct {
	conn *websocket.Conn
	out  chan WSEvent
	done chan struct{}
}

func (c *wsClient) send(ev WSEvent) {
	select {
	case c.out <- ev:
	default:
		// slow reader, drop
	}
}

func (c *wsClient) writeLoop() {
	defer close(c.done)
	for ev := range c.out {
		c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.conn.WriteJSON(ev); err != nil {
			c.conn.Close()
			for range c.out {
			}
			return
		}
	}
}

type hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func newHub() *hub {
	return &hub{clients: map[*wsClient]struct{}{}}
}

func (h *hub) add(conn *websocket.Conn) *wsClient {
	c := &wsClient{conn: conn, out: make(chan WSEvent, 16), done: make(chan struct{})}
	go c.writeLoop()
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *hub) remove(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		close(c.out)
		<-c.done
		c.conn.Close()
	}
}

func (h *hub) broadcast(ev WSEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.send(ev)
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		// unblocks the reader; remove runs from the handler
		c.conn.Close()
	}
}
