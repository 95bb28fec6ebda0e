package boardserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sushiag/go-pixel-canvas/internal/messages"
)

const (
	SnapshotPath = "/getboard"
	ChannelPath  = "/ws"
)

// Routes mounts the snapshot and websocket endpoints.
func (m *Manager) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(SnapshotPath, m.snapshotHandler)
	mux.HandleFunc(ChannelPath, m.channelHandler)
	return mux
}

func (m *Manager) snapshotHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	packed, err := m.Snapshot()
	if err != nil {
		http.Error(w, "Board unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(packed)
}

func (m *Manager) channelHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.WithError(err).Warn("Upgrade failed")
		return
	}

	log := m.log
	if client := r.Header.Get(messages.ClientIDHeader); client != "" {
		log = log.WithField("client_id", client)
	}
	c := newConnection(conn, log)
	if _, err := m.do(managerCommand{kind: cmdRegister, conn: c}); err != nil {
		conn.Close()
		return
	}
	c.start(m.inbound, m.disconnected, m.done)
}

// Server is a running board backend.
type Server struct {
	Addr    string
	Manager *Manager

	http *http.Server
	log  *logrus.Entry
}

// StartServer listens on addr (port 0 picks a free one) and serves an n×n
// board in the background.
func StartServer(addr string, n int, log *logrus.Entry) (*Server, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	manager, err := NewManager(n, log)
	if err != nil {
		listener.Close()
		return nil, err
	}

	s := &Server{
		Addr:    listener.Addr().String(),
		Manager: manager,
		http: &http.Server{
			Handler:           manager.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log.WithField("addr", listener.Addr().String()),
	}

	go func() {
		s.log.Info("Board server listening")
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()
	return s, nil
}

func (s *Server) URL() string   { return "http://" + s.Addr }
func (s *Server) WSURL() string { return "ws://" + s.Addr + ChannelPath }

// Close stops accepting requests and disconnects every client.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.http.Shutdown(ctx)
	s.Manager.Stop()
	s.log.Info("Board server stopped")
	return err
}
