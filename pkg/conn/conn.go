package conn

import (
	"fmt"
	"io"
	"sync/atomic"
)

// Kind distinguishes the side of the relay a connection belongs to.
type Kind uint8

const (
	// KindServer is a connection accepted from a downstream client.
	KindServer Kind = iota
	// KindClient is a connection established to an upstream server.
	// Client connections carry a request-sequencing queue.
	KindClient
)

// String returns the kind name.
func (k Kind) String() string {
	if k == KindClient {
		return "client"
	}
	return "server"
}

// Peer is the single primitive this core uses against the peer
// registry. The peer owns the membership collection; the core never
// manipulates it directly.
type Peer interface {
	AddConn(c *Conn)
}

// Conn is one established transport-level connection to a peer.
//
// The transport layer allocates a Conn before any other core operation
// touches it, links it to a peer exactly once, drives it through the
// lifecycle transitions, and reclaims it only after Release has
// completed and the reference count has hit zero.
type Conn struct {
	id    string
	proto Proto
	kind  Kind

	// peer is set exactly once by LinkPeer, together with list
	// membership on the peer side. Never one without the other.
	peer Peer

	refs     atomic.Int32
	stopRecv atomic.Bool

	// sock is the transport send/close endpoint. It remains valid for
	// the life of the Conn instance; the underlying socket may be
	// closed, but not deleted, before the Conn goes away.
	sock io.Writer

	// finalizer runs when the reference count reaches zero.
	finalizer func(*Conn)

	seq *SeqQueue

	// ProtoData holds decoder/engine state for this connection. It is
	// owned by the protocol engine selected by the tag; the core never
	// inspects it.
	ProtoData any
}

// NewConn creates a connection record with a single reference held by
// the caller (the transport layer).
func NewConn(id string, proto Proto, kind Kind) *Conn {
	c := &Conn{
		id:    id,
		proto: proto,
		kind:  kind,
	}
	if kind == KindClient {
		c.seq = newSeqQueue()
	}
	c.refs.Store(1)
	return c
}

// ID returns the connection identifier.
func (c *Conn) ID() string { return c.id }

// Proto returns the immutable protocol tag.
func (c *Conn) Proto() Proto { return c.proto }

// Kind returns the connection side.
func (c *Conn) Kind() Kind { return c.kind }

// PeerRef returns the owning peer, or nil before linkage.
func (c *Conn) PeerRef() Peer { return c.peer }

// Seq returns the request-sequencing queue for client connections, nil
// otherwise. The queue belongs to the protocol engine; the core only
// checks its emptiness as a Release post-condition.
func (c *Conn) Seq() *SeqQueue { return c.seq }

// SetSock installs the transport send endpoint.
func (c *Conn) SetSock(w io.Writer) { c.sock = w }

// Sock returns the transport send endpoint.
func (c *Conn) Sock() io.Writer { return c.sock }

// SetFinalizer installs the function run when the last reference is
// dropped. Must be called before the Conn is shared across goroutines.
func (c *Conn) SetFinalizer(fn func(*Conn)) { c.finalizer = fn }

// LinkPeer attaches the connection to its owning peer. A connection is
// linked at most once, before any data-path activity; violating that is
// a programming error.
func (c *Conn) LinkPeer(p Peer) {
	if c.peer != nil {
		panic(fmt.Sprintf("conn %s: already linked to a peer", c.id))
	}
	c.peer = p
	p.AddConn(c)
}

// Get acquires a reference. Acquiring on a connection whose count has
// already reached zero means the record is being used after teardown;
// that is a use-after-free in the making and halts the path loudly.
func (c *Conn) Get() {
	if c.refs.Add(1) <= 1 {
		panic(fmt.Sprintf("conn %s: reference acquired after release", c.id))
	}
}

// Put drops a reference. The final Put runs the transport-installed
// finalizer; the matching Get may have happened on another goroutine.
func (c *Conn) Put() {
	n := c.refs.Add(-1)
	if n < 0 {
		panic(fmt.Sprintf("conn %s: reference count underflow", c.id))
	}
	if n == 0 && c.finalizer != nil {
		c.finalizer(c)
	}
}

// Refs returns the current reference count. Diagnostic only; the value
// may be stale by the time it is observed.
func (c *Conn) Refs() int32 { return c.refs.Load() }

// SuppressReceive flags the connection to discard further inbound data
// without decoding. Used once teardown has begun.
func (c *Conn) SuppressReceive() { c.stopRecv.Store(true) }

// ReceiveSuppressed reports whether inbound data is being drained.
func (c *Conn) ReceiveSuppressed() bool { return c.stopRecv.Load() }
