// Package ipc is the local control channel of the daemon: one JSON
// request and one JSON response per unix socket connection.
package ipc

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"time"
)

const (
	OpToggle     = "toggle"
	OpStatus     = "status"
	OpTranscribe = "transcribe"
)

type Request struct {
	Op   string `json:"op"`
	Path string `json:"path,omitempty"`
}

type Response struct {
	OK          bool     `json:"ok"`
	Message     string   `json:"message,omitempty"`
	Text        string   `json:"text,omitempty"`
	State       string   `json:"state,omitempty"`
	Uptime      float64  `json:"uptime_sec,omitempty"`
	Transcripts []string `json:"transcripts,omitempty"`
}

type Handler func(Request) Response

// Server accepts control connections on a unix socket.
type Server struct {
	ln net.Listener
}

func StartServer(socketPath string, handler Handler) (*Server, error) {
	os.Remove(socketPath)

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", socketPath, err)
	}

	s := &Server{ln: ln}
	go s.accept(handler)

	return s, nil
}

func (s *Server) Close() error {
	return s.ln.Close()
}

func (s *Server) accept(handler Handler) {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go handleConn(conn, handler)
	}
}

func handleConn(conn net.Conn, handler Handler) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Minute))

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		json.NewEncoder(conn).Encode(Response{Message: "bad request"})
		return
	}

	resp := handler(req)
	json.NewEncoder(conn).Encode(resp)
}

// Send delivers one request to a running daemon and waits for the reply.
func Send(socketPath string, req Request) (Response, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return Response{}, fmt.Errorf("dial %s: %w", socketPath, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Minute))

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	return resp, nil
}
