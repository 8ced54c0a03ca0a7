package net

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"

	"go.uber.org/zap"
)

// Server accepts connections and creates Sessions.
// New sessions are handed to the game loop via a channel.
type Server struct {
	listener net.Listener
	nextID   atomic.Uint64
	newConns chan *Session
	opts     SessionOptions
	log      *zap.Logger
	closeCh  chan struct{}
}

// NewServer builds a server without a listener. Use Listen to bind a TCP
// address, or Attach to feed in already-established connections.
func NewServer(opts SessionOptions, log *zap.Logger) *Server {
	return &Server{
		newConns: make(chan *Session, 64),
		opts:     opts,
		log:      log,
		closeCh:  make(chan struct{}),
	}
}

// Listen binds bindAddr and starts the accept loop.
func (s *Server) Listen(bindAddr string) error {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", bindAddr, err)
	}
	s.listener = ln
	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return // server shutting down
			default:
			}
			s.log.Error("連線接受失敗", zap.Error(err))
			continue
		}
		s.Attach(conn)
	}
}

// Attach wraps conn in a Session, starts its I/O goroutines and queues it
// for the game loop.
func (s *Server) Attach(conn net.Conn) *Session {
	id := s.nextID.Add(1)
	sess := NewSession(conn, id, s.opts, s.log)
	sess.Start()

	s.log.Info(fmt.Sprintf("玩家連線  session=%d  addr=%s", id, sess.Addr))

	select {
	case s.newConns <- sess:
	default:
		s.log.Warn("連線佇列已滿，拒絕新連線")
		sess.Close()
	}
	return sess
}

// NewSessions returns the channel of newly connected sessions.
func (s *Server) NewSessions() <-chan *Session {
	return s.newConns
}

// Shutdown stops accepting new connections.
func (s *Server) Shutdown() {
	select {
	case <-s.closeCh:
		return
	default:
	}
	close(s.closeCh)
	if s.listener != nil {
		s.listener.Close()
	}
}

// Addr returns the listener's address, or nil when not listening.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Dial connects to a host and returns a started session for the joining side.
func Dial(ctx context.Context, addr string, opts SessionOptions, log *zap.Logger) (*Session, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	sess := NewSession(conn, 0, opts, log)
	sess.Start()
	return sess, nil
}
