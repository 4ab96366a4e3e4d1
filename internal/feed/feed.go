// Package feed publishes session events over a local websocket so
// companion UIs (menu bar indicators, overlays) can follow the daemon.
package feed

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	KindRecordingStarted = "recording_started"
	KindRecordingStopped = "recording_stopped"
	KindTranscript       = "transcript"
	KindError            = "error"
)

type Event struct {
	Kind    string    `json:"kind"`
	Session string    `json:"session,omitempty"`
	Text    string    `json:"text,omitempty"`
	Time    time.Time `json:"time"`
}

type Server struct {
	addr   string
	logger *slog.Logger

	upgrader websocket.Upgrader
	httpSrv  *http.Server
	ln       net.Listener

	queue chan Event
	done  chan struct{}
	once  sync.Once

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}

	// gorilla allows one concurrent writer per connection.
	writeMu sync.Mutex
}

func NewServer(addr string, logger *slog.Logger) *Server {
	return &Server{
		addr:   addr,
		logger: logger,
		queue:  make(chan Event, 64),
		done:   make(chan struct{}),
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.httpSrv = &http.Server{Handler: mux}

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("feed server stopped", "err", err)
		}
	}()
	go s.broadcastLoop()

	s.logger.Info("event feed listening", "addr", ln.Addr().String())
	return nil
}

// Addr is the bound address, useful when the configured port is 0.
func (s *Server) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

func (s *Server) Close() error {
	s.once.Do(func() { close(s.done) })

	s.mu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.conns = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()

	if s.httpSrv != nil {
		return s.httpSrv.Close()
	}
	return nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("feed upgrade failed", "err", err)
		return
	}

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	// Subscribers only listen; the read loop exists to notice closes.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.drop(conn)
				return
			}
		}
	}()
}

// Publish hands the event to the broadcast goroutine and returns
// immediately; a stalled subscriber never delays the caller. A full
// queue drops the event.
func (s *Server) Publish(ev Event) {
	select {
	case s.queue <- ev:
	default:
		s.logger.Warn("feed queue full, dropping event", "kind", ev.Kind)
	}
}

func (s *Server) broadcastLoop() {
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.queue:
			s.broadcast(ev)
		}
	}
}

// broadcast fans one event out to every subscriber. Slow or dead
// subscribers are dropped.
func (s *Server) broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("marshal feed event", "err", err)
		return
	}

	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.drop(conn)
		}
	}
}

func (s *Server) drop(conn *websocket.Conn) {
	s.mu.Lock()
	if _, ok := s.conns[conn]; ok {
		delete(s.conns, conn)
		conn.Close()
	}
	s.mu.Unlock()
}
