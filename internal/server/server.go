// Package server runs the mail exchange: a single event loop services every
// client connection, so no two request handlers ever run concurrently and
// the session registry needs no locking. An acceptor goroutine and one
// reader goroutine per connection feed the loop through a shared event
// channel; all connection state is owned and mutated by the loop alone.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/infodancer/mailxd/internal/config"
	"github.com/infodancer/mailxd/internal/metrics"
	"github.com/infodancer/mailxd/internal/store"
	"github.com/infodancer/mailxd/internal/wire"
)

// eventKind discriminates events delivered to the loop.
type eventKind int

const (
	eventAccept eventKind = iota
	eventRequest
	eventBadPacket
	eventReadError
)

// event is one unit of work for the loop: a new connection, a complete
// request from a tracked connection, or a transport failure on one.
type event struct {
	kind    eventKind
	netConn net.Conn // eventAccept
	id      uint64   // eventRequest, eventReadError
	msg     wire.Message
	err     error
}

// Server is the connection-multiplexing mail exchange server.
type Server struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *store.Store
	collector metrics.Collector

	listener net.Listener
	events   chan event
	done     chan struct{}

	// Loop-owned state. Only the event loop may touch these.
	conns    map[uint64]*conn
	registry *Registry
	nextID   uint64
}

// Config holds the dependencies for creating a new Server.
type Config struct {
	Cfg       config.Config
	Store     *store.Store
	Collector metrics.Collector // nil → NoopCollector
	Logger    *slog.Logger      // nil → slog.Default()
}

// New creates a Server. Listen must be called before Serve.
func New(sc Config) *Server {
	collector := sc.Collector
	if collector == nil {
		collector = &metrics.NoopCollector{}
	}
	logger := sc.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		cfg:       sc.Cfg,
		logger:    logger,
		store:     sc.Store,
		collector: collector,
		events:    make(chan event),
		done:      make(chan struct{}),
		conns:     make(map[uint64]*conn),
		registry:  NewRegistry(),
	}
}

// Listen opens the listening socket on the configured address.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Listen, err)
	}
	s.listener = listener
	s.logger.Info("listening", "address", listener.Addr().String())
	return nil
}

// Addr returns the listener's address. Only valid after Listen.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Run opens the listener and serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve drives the event loop until the context is cancelled. Exactly one
// accept or one request-handle executes at a time.
func (s *Server) Serve(ctx context.Context) error {
	go s.acceptLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return ctx.Err()

		case ev := <-s.events:
			switch ev.kind {
			case eventAccept:
				s.addConn(ev.netConn)
			case eventRequest:
				s.handleRequest(ev.id, ev.msg)
			case eventBadPacket:
				s.handleBadPacket(ev.id)
			case eventReadError:
				s.dropConn(ev.id, ev.err)
			}
		}
	}
}

// acceptLoop blocks on the listening socket and forwards accepted
// connections to the event loop. It exits when the listener closes.
func (s *Server) acceptLoop(ctx context.Context) {
	for {
		netConn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("accept failed", "error", err.Error())
			return
		}

		select {
		case s.events <- event{kind: eventAccept, netConn: netConn}:
		case <-ctx.Done():
			_ = netConn.Close()
			return
		}
	}
}

// addConn registers an accepted connection with no session and starts its
// reader. Connections beyond the configured limit are closed immediately.
func (s *Server) addConn(netConn net.Conn) {
	if len(s.conns) >= s.cfg.Limits.MaxConnections {
		s.logger.Warn("connection limit reached, rejecting",
			"remote", netConn.RemoteAddr().String(),
			"limit", s.cfg.Limits.MaxConnections,
		)
		_ = netConn.Close()
		return
	}

	s.nextID++
	c := &conn{id: s.nextID, netConn: netConn}
	s.conns[c.id] = c
	s.collector.ConnectionOpened()

	s.logger.Info("client connected",
		"conn_id", c.id,
		"remote", netConn.RemoteAddr().String(),
	)

	go s.readLoop(c)
}

// readLoop reads complete requests off one connection and forwards them to
// the event loop. Any transport failure ends the loop; the event loop tears
// the connection down on receipt of the error event.
func (s *Server) readLoop(c *conn) {
	for {
		msg, err := wire.Recv(c.netConn)
		if err != nil {
			// An undecodable body keeps the stream in sync; only framing
			// failures end the connection.
			if errors.Is(err, wire.ErrBadPacket) {
				select {
				case s.events <- event{kind: eventBadPacket, id: c.id}:
					continue
				case <-s.done:
					return
				}
			}
			select {
			case s.events <- event{kind: eventReadError, id: c.id, err: err}:
			case <-s.done:
			}
			return
		}
		select {
		case s.events <- event{kind: eventRequest, id: c.id, msg: msg}:
		case <-s.done:
			return
		}
	}
}

// handleRequest dispatches one request and writes the response. Events for
// connections already dropped are discarded.
func (s *Server) handleRequest(id uint64, msg wire.Message) {
	c, ok := s.conns[id]
	if !ok {
		return
	}

	s.logger.Debug("request received", "conn_id", id, "header", string(msg.Header))

	resp, teardown := s.dispatch(c, msg)
	if teardown {
		s.logger.Info("client said goodbye", "conn_id", id)
		s.removeConn(c)
		return
	}

	if err := wire.Send(c.netConn, resp); err != nil {
		s.dropConn(id, err)
		return
	}

	s.logger.Debug("response sent", "conn_id", id, "header", string(resp.Header))
}

// handleBadPacket reports an undecodable request body; the connection
// stays open.
func (s *Server) handleBadPacket(id uint64) {
	c, ok := s.conns[id]
	if !ok {
		return
	}

	s.logger.Warn("bad packet received", "conn_id", id)
	if err := wire.Send(c.netConn, wire.Error("bad packet")); err != nil {
		s.dropConn(id, err)
	}
}

// dropConn tears down a connection after a transport failure. Dropping an
// already-removed connection is a no-op, so a read error racing a goodbye
// removes the connection exactly once.
func (s *Server) dropConn(id uint64, err error) {
	c, ok := s.conns[id]
	if !ok {
		return
	}

	if errors.Is(err, wire.ErrConnectionLost) {
		s.logger.Info("connection lost", "conn_id", id)
	} else {
		s.logger.Error("connection failed", "conn_id", id, "error", err.Error())
	}

	s.removeConn(c)
}

// removeConn closes the socket and erases the connection and its session.
func (s *Server) removeConn(c *conn) {
	_ = c.netConn.Close()
	delete(s.conns, c.id)
	s.registry.Detach(c.id)
	s.collector.ConnectionClosed()
}

// shutdown closes the listener and every residual connection.
func (s *Server) shutdown() {
	s.logger.Info("server shutting down")

	close(s.done)
	if s.listener != nil {
		_ = s.listener.Close()
	}
	for _, c := range s.conns {
		s.removeConn(c)
	}

	s.logger.Info("server stopped")
}
