package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrServerClosed is returned by publish calls after Close.
var ErrServerClosed = errors.New("stream server closed")

// movieControlBuffer bounds the backchannel so a viewer flooding movie
// responses cannot block the reader.
const movieControlBuffer = 32

// Options configures a Server.
type Options struct {
	// Addr is the TCP listen address, e.g. "127.0.0.1:0".
	Addr string
	// Build is advertised in the Hello handshake. Empty means "dev".
	Build string
	// Logger receives connection lifecycle events. Nil uses slog.Default.
	Logger *slog.Logger
}

// Server broadcasts framed engine messages to a single connected viewer.
//
// Publishing is gated: updates are dropped until the viewer has completed
// the handshake and sent a viewer_ready control message. Each reconnect
// bumps the connection generation and re-arms the gate.
type Server struct {
	logger   *slog.Logger
	build    string
	start    time.Time
	seq      atomic.Uint64
	closed   atomic.Bool
	state    *connectionState
	controls chan MovieControlEvent

	httpServer *http.Server
	listener   net.Listener
	upgrader   websocket.Upgrader

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewServer binds the listen address and starts serving in the background.
func NewServer(opts Options) (*Server, error) {
	listener, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("binding stream socket: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	build := opts.Build
	if build == "" {
		build = "dev"
	}

	s := &Server{
		logger:   logger,
		build:    build,
		start:    time.Now(),
		state:    newConnectionState(),
		controls: make(chan MovieControlEvent, movieControlBuffer),
		listener: listener,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/stream", s.handleStream)
	s.httpServer = &http.Server{Handler: mux}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("stream server stopped", "error", err)
		}
	}()

	return s, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Close stops the listener and drops the current viewer.
func (s *Server) Close() error {
	s.closed.Store(true)
	s.dropConn(nil)
	return s.httpServer.Close()
}

// SendStateUpdate publishes a state delta to the viewer. Updates sent
// before the viewer is ready are dropped without consuming a sequence
// number. The sequence and host time are stamped here.
func (s *Server) SendStateUpdate(update StateUpdate) error {
	if s.closed.Load() {
		return ErrServerClosed
	}
	if !s.state.isReady() {
		return nil
	}
	update.Seq = s.seq.Add(1) - 1
	if update.HostTimeNS == 0 {
		update.HostTimeNS = uint64(time.Since(s.start).Nanoseconds())
	}
	message, err := EncodeMessage(KindStateUpdate, update)
	if err != nil {
		return err
	}
	s.writeFrame(message)
	return nil
}

// SendMovieStart announces a fullscreen movie when the viewer is ready.
func (s *Server) SendMovieStart(start MovieStart) error {
	if s.closed.Load() {
		return ErrServerClosed
	}
	if !s.state.isReady() {
		return nil
	}
	message, err := EncodeMessage(KindMovieStart, start)
	if err != nil {
		return err
	}
	s.writeFrame(message)
	return nil
}

// MovieControls returns the channel carrying viewer movie responses.
func (s *Server) MovieControls() <-chan MovieControlEvent {
	return s.controls
}

// Generation reports the current connection generation. It increments
// each time a viewer connects.
func (s *Server) Generation() uint64 {
	return s.state.currentGeneration()
}

// ViewerGate returns a handle for blocking until the viewer is ready.
func (s *Server) ViewerGate() *ViewerGate {
	return &ViewerGate{state: s.state}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	occupied := s.conn != nil
	s.mu.Unlock()
	if occupied {
		http.Error(w, "viewer already connected", http.StatusConflict)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("stream upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	hello, err := EncodeMessage(KindHello, NewHello("exhume", s.build))
	if err != nil {
		s.logger.Error("hello encode failed", "error", err)
		conn.Close()
		return
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, hello); err != nil {
		s.logger.Warn("handshake failed", "remote", r.RemoteAddr, "error", err)
		conn.Close()
		return
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	generation := s.state.onConnect()
	s.logger.Info("viewer connected", "remote", r.RemoteAddr, "generation", generation)

	go s.readLoop(conn, generation)
}

// writeFrame sends one framed message to the current viewer. Write
// failures reset the gate and wait for a reconnect.
func (s *Server) writeFrame(message []byte) {
	s.mu.Lock()
	conn := s.conn
	if conn == nil {
		s.mu.Unlock()
		return
	}
	err := conn.WriteMessage(websocket.BinaryMessage, message)
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("send failed, waiting for reconnect", "error", err)
		s.dropConn(conn)
	}
}

// dropConn closes and forgets the connection. A nil argument drops
// whatever connection is current.
func (s *Server) dropConn(conn *websocket.Conn) {
	s.mu.Lock()
	if conn == nil {
		conn = s.conn
	}
	current := s.conn == conn
	if current {
		s.conn = nil
	}
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if current {
		s.state.onDisconnect()
	}
}

func (s *Server) readLoop(conn *websocket.Conn, generation uint64) {
	defer s.dropConn(conn)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !s.closed.Load() {
				s.logger.Warn("control read error, resetting viewer gate", "error", err)
			}
			return
		}

		header, payload, err := DecodeEnvelope(message)
		if err != nil {
			s.logger.Warn("control frame decode failed, skipping", "error", err)
			continue
		}

		switch header.Kind {
		case KindControl:
			var control Control
			if err := DecodePayload(payload, &control); err != nil {
				s.logger.Warn("control payload decode failed", "error", err)
				continue
			}
			if control.Type == ControlViewerReady {
				s.state.onReady()
				s.logger.Info("viewer ready", "protocol", control.Protocol, "features", control.Features)
			}
		case KindHeartbeat:
		case KindMovieControl:
			var control MovieControl
			if err := DecodePayload(payload, &control); err != nil {
				s.logger.Warn("movie control decode failed, skipping", "error", err)
				continue
			}
			select {
			case s.controls <- MovieControlEvent{Generation: generation, Control: control}:
			default:
				s.logger.Warn("dropping movie control event, backchannel full")
			}
		default:
			s.logger.Warn("ignoring inbound message kind on control plane", "kind", uint16(header.Kind))
		}
	}
}

// connectionState tracks the viewer handshake across reconnects.
type connectionState struct {
	mu          sync.Mutex
	cond        *sync.Cond
	connected   bool
	viewerReady bool
	generation  uint64
	ready       atomic.Bool
}

func newConnectionState() *connectionState {
	state := &connectionState{}
	state.cond = sync.NewCond(&state.mu)
	return state
}

func (c *connectionState) onConnect() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	c.viewerReady = false
	c.generation++
	c.ready.Store(false)
	c.cond.Broadcast()
	return c.generation
}

func (c *connectionState) onDisconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected && !c.viewerReady {
		return
	}
	c.connected = false
	c.viewerReady = false
	c.ready.Store(false)
	c.cond.Broadcast()
}

func (c *connectionState) onReady() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return
	}
	c.viewerReady = true
	c.ready.Store(true)
	c.cond.Broadcast()
}

func (c *connectionState) isReady() bool {
	return c.ready.Load()
}

func (c *connectionState) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// ViewerGate blocks callers until a viewer has connected and reported
// ready. Safe to share across goroutines.
type ViewerGate struct {
	state *connectionState
}

// WaitForReady blocks until the gate opens or the context is done.
func (g *ViewerGate) WaitForReady(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		g.state.mu.Lock()
		g.state.cond.Broadcast()
		g.state.mu.Unlock()
	})
	defer stop()

	g.state.mu.Lock()
	defer g.state.mu.Unlock()
	for !(g.state.connected && g.state.viewerReady) {
		if err := ctx.Err(); err != nil {
			return err
		}
		g.state.cond.Wait()
	}
	return nil
}

// IsReady reports whether the gate is currently open.
func (g *ViewerGate) IsReady() bool {
	return g.state.isReady()
}
