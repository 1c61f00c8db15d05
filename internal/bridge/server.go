// Package bridge serves property synchronization over WebSocket. A browser
// page (or any peer) connects, subscribes to property paths, and exchanges
// propsync commands as JSON text frames.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/roach88/procnet/internal/propsync"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	sendBuffer     = 64
)

// ErrClosed is returned when pushing through a closed server.
var ErrClosed = errors.New("bridge closed")

// Server is an http.Handler that upgrades requests to WebSocket and routes
// commands to a shared propsync.Synchronizer. Updates are broadcast to
// every connected peer.
type Server struct {
	sync     *propsync.Synchronizer
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[string]*peer
	// subs counts the peers holding each widget subscription.
	subs   map[subscription]int
	closed bool
}

type subscription struct{ path, id string }

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithCheckOrigin overrides the upgrader's origin check.
func WithCheckOrigin(fn func(*http.Request) bool) Option {
	return func(s *Server) { s.upgrader.CheckOrigin = fn }
}

// NewServer creates a Server resolving property paths with r.
func NewServer(r propsync.Resolver, opts ...Option) *Server {
	s := &Server{
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		logger:   slog.Default(),
		clients:  make(map[string]*peer),
		subs:     make(map[subscription]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sync = propsync.New(r, s, propsync.WithLogger(s.logger))
	return s
}

// Synchronizer returns the synchronizer shared by all peers.
func (s *Server) Synchronizer() *propsync.Synchronizer { return s.sync }

// Clients returns the number of connected peers.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	p := &peer{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		subs: make(map[subscription]bool),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ws.Close()
		return
	}
	s.clients[p.id] = p
	s.mu.Unlock()

	s.logger.Info("peer connected", "peer", p.id, "remote", r.RemoteAddr)
	go p.writePump()
	s.readPump(p)
}

// Push implements propsync.Sink by broadcasting u. A peer whose send
// buffer is full is disconnected.
func (s *Server) Push(u propsync.Update) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for id, p := range s.clients {
		select {
		case p.send <- data:
		default:
			s.logger.Warn("peer too slow, disconnecting", "peer", id)
			s.dropLocked(p)
		}
	}
	return nil
}

// Close disconnects every peer and drops all subscriptions.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, p := range s.clients {
		s.dropLocked(p)
	}
	s.mu.Unlock()
	s.sync.Close()
	return nil
}

func (s *Server) dropLocked(p *peer) {
	if _, ok := s.clients[p.id]; !ok {
		return
	}
	delete(s.clients, p.id)
	close(p.send)
}

func (s *Server) readPump(p *peer) {
	defer func() {
		s.mu.Lock()
		s.dropLocked(p)
		s.mu.Unlock()
		p.ws.Close()
		s.releaseSubscriptions(p)
		s.logger.Info("peer disconnected", "peer", p.id)
	}()

	p.ws.SetReadLimit(maxMessageSize)
	p.ws.SetReadDeadline(time.Now().Add(pongWait))
	p.ws.SetPongHandler(func(string) error {
		return p.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := p.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("read failed", "peer", p.id, "error", err)
			}
			return
		}
		if !s.reply(p, s.handle(p, msg)) {
			return
		}
	}
}

func (s *Server) handle(p *peer, msg []byte) []byte {
	cmd, err := propsync.DecodeCommand(msg)
	if err != nil {
		data, _ := json.Marshal(propsync.Response{Error: err.Error()})
		return data
	}
	resp := s.sync.Handle(cmd)
	if resp.OK {
		sub := subscription{cmd.Path, cmd.ID}
		switch cmd.Command {
		case propsync.CmdSubscribe:
			s.mu.Lock()
			if !p.subs[sub] {
				p.subs[sub] = true
				s.subs[sub]++
			}
			s.mu.Unlock()
		case propsync.CmdUnsubscribe:
			s.mu.Lock()
			if p.subs[sub] {
				delete(p.subs, sub)
				s.subs[sub]--
				if s.subs[sub] <= 0 {
					delete(s.subs, sub)
				}
			}
			s.mu.Unlock()
		}
	}
	data, err := json.Marshal(resp)
	if err != nil {
		data, _ = json.Marshal(propsync.Response{Command: cmd.Command, Path: cmd.Path, Error: err.Error()})
	}
	return data
}

// releaseSubscriptions unsubscribes the widgets p registered that no
// other connected peer still holds. A path left without widgets stops
// waiting for echoes, so the next peer's edits are applied.
func (s *Server) releaseSubscriptions(p *peer) {
	var gone []subscription
	s.mu.Lock()
	for sub := range p.subs {
		s.subs[sub]--
		if s.subs[sub] <= 0 {
			delete(s.subs, sub)
			gone = append(gone, sub)
		}
	}
	clear(p.subs)
	s.mu.Unlock()

	for _, sub := range gone {
		if err := s.sync.Unsubscribe(sub.path, sub.id); err != nil && !errors.Is(err, propsync.ErrNotSubscribed) {
			s.logger.Warn("unsubscribe failed", "peer", p.id, "path", sub.path, "error", err)
		}
	}
}

func (s *Server) reply(p *peer, data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[p.id]; !ok {
		return false
	}
	select {
	case p.send <- data:
		return true
	default:
		s.logger.Warn("peer too slow, disconnecting", "peer", p.id)
		s.dropLocked(p)
		return false
	}
}

type peer struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	subs map[subscription]bool // guarded by Server.mu
}

// writePump is the only goroutine writing to ws.
func (p *peer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		p.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-p.send:
			p.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				p.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := p.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			p.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ListenAndServe serves h on addr until ctx is cancelled, then shuts the
// HTTP server down gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	logger.Info("bridge listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
