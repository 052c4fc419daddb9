package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/getrelayd/relayd/pkg/conn"
	"github.com/getrelayd/relayd/pkg/metrics"
	"github.com/getrelayd/relayd/pkg/netbuf"
	"github.com/getrelayd/relayd/pkg/peer"
)

// Dialer establishes client-kind connections to upstream servers.
type Dialer struct {
	// Proto is the protocol tag stamped on dialed connections.
	Proto conn.Proto

	// TLSConfig is used when Proto carries the secure tag.
	TLSConfig *tls.Config

	// Timeout bounds the TCP connect; 0 means no bound beyond ctx.
	Timeout time.Duration

	// ReadBufSize is the read segment size; 0 means DefaultReadBufSize.
	ReadBufSize int

	// Peers receives dialed connections, keyed by upstream address.
	Peers *peer.Registry

	// Log receives diagnostics; nil uses slog.Default.
	Log *slog.Logger

	// OnDown is consulted when a dialed socket dies. Returning true
	// keeps the record alive for Redial instead of tearing it down.
	// Nil always tears down.
	OnDown func(c *conn.Conn) bool
}

func (d *Dialer) log() *slog.Logger {
	if d.Log != nil {
		return d.Log
	}
	return slog.Default()
}

// Dial connects to an upstream, runs the connection through establish,
// and starts its read loop. The returned connection is live; the caller
// holds the transport reference and must not Put it — teardown happens
// when the socket dies or the upstream is shut down.
func (d *Dialer) Dial(ctx context.Context, addr string) (*conn.Conn, error) {
	nd := &net.Dialer{Timeout: d.Timeout}
	nc, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if d.Proto.Secure() {
		tc := tls.Client(nc, d.TLSConfig)
		if err := tc.HandshakeContext(ctx); err != nil {
			_ = nc.Close()
			return nil, fmt.Errorf("tls handshake %s: %w", addr, err)
		}
		nc = tc
	}

	id := uuid.NewString()
	c := conn.NewConn(id, d.Proto, conn.KindClient)
	c.SetSock(nc)

	start := time.Now()
	proto := d.Proto.String()
	// Close whatever socket the record holds at teardown time: Redial
	// may have swapped it since the dial.
	c.SetFinalizer(func(fc *conn.Conn) {
		if cl, ok := fc.Sock().(io.Closer); ok {
			_ = cl.Close()
		}
		metrics.ConnClosed(proto, time.Since(start).Seconds())
	})

	var p *peer.Peer
	if d.Peers != nil {
		p = d.Peers.GetOrCreate(addr)
		c.LinkPeer(p)
	}

	if err := c.Establish(); err != nil {
		if p != nil {
			p.RemoveConn(c)
		}
		c.Put()
		return nil, fmt.Errorf("establish %s: %w", addr, err)
	}
	metrics.ConnOpened(proto)

	go d.runClient(c, nc, p)
	return c, nil
}

// runClient pumps a client socket and tears the record down when it
// dies, unless the owner claims it for repair.
func (d *Dialer) runClient(c *conn.Conn, nc net.Conn, p *peer.Peer) {
	size := d.ReadBufSize
	if size <= 0 {
		size = DefaultReadBufSize
	}
	readLoop(c, nc, netbuf.NewPool(size), d.Proto.String(), d.log())

	if d.OnDown != nil && d.OnDown(c) {
		// The owner wants to repair this record; Redial installs a
		// fresh socket and read loop.
		return
	}
	c.SuppressReceive()
	c.Drop()
	if p != nil {
		p.RemoveConn(c)
	}
	c.Release()
	c.Put()
}

// Redial replaces the socket under an existing connection record after
// the upstream dropped it. The record keeps its identity and peer
// linkage; protocol state restarts at a message boundary.
func (d *Dialer) Redial(ctx context.Context, c *conn.Conn, addr string) error {
	nd := &net.Dialer{Timeout: d.Timeout}
	nc, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("redial %s: %w", addr, err)
	}
	if d.Proto.Secure() {
		tc := tls.Client(nc, d.TLSConfig)
		if err := tc.HandshakeContext(ctx); err != nil {
			_ = nc.Close()
			return fmt.Errorf("tls handshake %s: %w", addr, err)
		}
		nc = tc
	}

	c.SetSock(nc)
	c.Repair()

	var p *peer.Peer
	if pr, ok := c.PeerRef().(*peer.Peer); ok {
		p = pr
	}
	go d.runClient(c, nc, p)
	return nil
}
