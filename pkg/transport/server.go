// Package transport drives connection records over real TCP/TLS
// sockets: it accepts, reads, and tears down, while all protocol
// behavior stays behind the lifecycle hooks and decoders registered
// with the connection core.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/netutil"

	"github.com/getrelayd/relayd/pkg/conn"
	"github.com/getrelayd/relayd/pkg/metrics"
	"github.com/getrelayd/relayd/pkg/netbuf"
	"github.com/getrelayd/relayd/pkg/peer"
)

// DefaultReadBufSize is the read segment size when the server is not
// configured otherwise.
const DefaultReadBufSize = 16 * 1024

// Config describes one listening endpoint.
type Config struct {
	// Addr is the listen address, host:port.
	Addr string

	// Proto is the protocol tag stamped on accepted connections.
	Proto conn.Proto

	// TLSConfig enables TLS on the listener. Required when Proto
	// carries the secure tag; ignored otherwise.
	TLSConfig *tls.Config

	// MaxConns caps concurrently accepted connections; 0 means no cap.
	MaxConns int

	// ReadBufSize is the read segment size; 0 means DefaultReadBufSize.
	ReadBufSize int
}

// Server accepts downstream connections on one endpoint and pumps their
// inbound bytes through the receive pipeline.
type Server struct {
	cfg   Config
	peers *peer.Registry
	log   *slog.Logger
	pool  *netbuf.Pool

	ln      net.Listener
	mu      sync.Mutex
	conns   map[string]*conn.Conn
	wg      sync.WaitGroup
	closing atomic.Bool
}

// NewServer creates a server for one endpoint. peers receives every
// accepted connection, keyed by remote host.
func NewServer(cfg Config, peers *peer.Registry, log *slog.Logger) *Server {
	if cfg.ReadBufSize <= 0 {
		cfg.ReadBufSize = DefaultReadBufSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		cfg:   cfg,
		peers: peers,
		log:   log,
		pool:  netbuf.NewPool(cfg.ReadBufSize),
		conns: make(map[string]*conn.Conn),
	}
}

// Start binds the listener and launches the accept loop.
func (s *Server) Start() error {
	if s.cfg.Proto.Secure() && s.cfg.TLSConfig == nil {
		return fmt.Errorf("listener %s: %s requires a TLS config", s.cfg.Addr, s.cfg.Proto)
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	if s.cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConns)
	}
	if s.cfg.Proto.Secure() {
		ln = tls.NewListener(ln, s.cfg.TLSConfig)
	}
	s.ln = ln

	s.log.Info("listener started",
		slog.String("addr", ln.Addr().String()),
		slog.String("proto", s.cfg.Proto.String()))

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Addr returns the bound listen address, nil before Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Stop closes the listener and winds down live connections: a graceful
// shutdown first, then an abrupt close for whatever is still up when
// ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.closing.Store(true)
	if s.ln != nil {
		_ = s.ln.Close()
	}

	s.mu.Lock()
	live := make([]*conn.Conn, 0, len(s.conns))
	for _, c := range s.conns {
		live = append(live, c)
	}
	s.mu.Unlock()

	for _, c := range live {
		if err := c.Shutdown(false); err != nil {
			s.log.Debug("shutdown hook failed", slog.String("conn", c.ID()), slog.Any("error", err))
		}
		if closer, ok := c.Sock().(interface{ Close() error }); ok {
			_ = closer.Close()
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		for _, c := range live {
			c.Abort()
		}
		return ctx.Err()
	}
}

// ConnCount returns the number of live connections on this server.
func (s *Server) ConnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			if s.closing.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("accept failed", slog.Any("error", err))
			continue
		}
		s.wg.Add(1)
		go s.serveConn(nc)
	}
}

func (s *Server) serveConn(nc net.Conn) {
	defer s.wg.Done()

	id := uuid.NewString()
	c := conn.NewConn(id, s.cfg.Proto, conn.KindServer)
	c.SetSock(nc)

	start := time.Now()
	proto := s.cfg.Proto.String()
	c.SetFinalizer(func(*conn.Conn) {
		_ = nc.Close()
		metrics.ConnClosed(proto, time.Since(start).Seconds())
	})

	p := s.peers.GetOrCreate(remoteHost(nc))
	c.LinkPeer(p)

	if err := c.Establish(); err != nil {
		s.log.Warn("connection rejected at establish",
			slog.String("conn", id), slog.Any("error", err))
		p.RemoveConn(c)
		c.Put()
		return
	}
	metrics.ConnOpened(proto)
	s.log.Debug("connection accepted",
		slog.String("conn", id),
		slog.String("proto", proto),
		slog.String("remote", nc.RemoteAddr().String()))

	s.track(c)
	defer s.untrack(c)

	readLoop(c, nc, s.pool, proto, s.log)

	c.SuppressReceive()
	c.Drop()
	p.RemoveConn(c)
	c.Release()
	c.Put()
}

func (s *Server) track(c *conn.Conn) {
	s.mu.Lock()
	s.conns[c.ID()] = c
	s.mu.Unlock()
}

func (s *Server) untrack(c *conn.Conn) {
	s.mu.Lock()
	delete(s.conns, c.ID())
	s.mu.Unlock()
}

// readLoop pumps socket bytes into the receive pipeline until the
// socket fails or the pipeline reports the stream is beyond saving.
func readLoop(c *conn.Conn, nc net.Conn, pool *netbuf.Pool, proto string, log *slog.Logger) {
	for {
		b := pool.Get()
		n, err := nc.Read(b.Bytes())
		if n > 0 {
			b.Truncate(n)
			metrics.RecvBuffer(proto, n)
			st := c.Receive(b)
			metrics.RecvResult(st.String())
			if st != conn.StatusOK && st != conn.StatusPostpone {
				log.Debug("receive failed, dropping connection",
					slog.String("conn", c.ID()), slog.String("status", st.String()))
				return
			}
		} else {
			b.Free()
		}
		if err != nil {
			return
		}
	}
}

func remoteHost(nc net.Conn) string {
	host, _, err := net.SplitHostPort(nc.RemoteAddr().String())
	if err != nil {
		return nc.RemoteAddr().String()
	}
	return host
}
