// Package peer tracks remote endpoints and the connections they own.
//
// A Peer holds an ordered collection of its live connections with O(1)
// insert and remove. The connection core never touches this collection
// directly; it only calls AddConn during peer linkage. The Registry maps
// peer addresses to Peer records for the whole process.
package peer

import (
	"container/list"
	"sync"

	"github.com/getrelayd/relayd/pkg/conn"
)

// Peer is one remote endpoint and the set of connections bound to it.
type Peer struct {
	addr string

	mu    sync.Mutex
	order *list.List               // of *conn.Conn, in linkage order
	index map[string]*list.Element // conn ID -> element
}

// New creates a peer record for addr.
func New(addr string) *Peer {
	return &Peer{
		addr:  addr,
		order: list.New(),
		index: make(map[string]*list.Element),
	}
}

// Addr returns the peer's address.
func (p *Peer) Addr() string { return p.addr }

// AddConn registers a connection with this peer. Implements conn.Peer;
// called exactly once per connection, via Conn.LinkPeer.
func (p *Peer) AddConn(c *conn.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.index[c.ID()] = p.order.PushBack(c)
}

// RemoveConn drops a connection from the membership. Safe to call for a
// connection that was never added.
func (p *Peer) RemoveConn(c *conn.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.index[c.ID()]; ok {
		p.order.Remove(el)
		delete(p.index, c.ID())
	}
}

// ConnCount returns the number of live connections.
func (p *Peer) ConnCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.order.Len()
}

// ForEachConn visits connections in linkage order. Return false to stop.
// The visit runs under the membership lock; callbacks must not re-enter
// Add/Remove on the same peer.
func (p *Peer) ForEachConn(fn func(*conn.Conn) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for el := p.order.Front(); el != nil; el = el.Next() {
		if !fn(el.Value.(*conn.Conn)) {
			return
		}
	}
}

// Conns returns a snapshot of the membership in linkage order.
func (p *Peer) Conns() []*conn.Conn {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*conn.Conn, 0, p.order.Len())
	for el := p.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*conn.Conn))
	}
	return out
}

// Registry maps peer addresses to peer records. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]*Peer
}

// NewRegistry creates an empty peer registry.
func NewRegistry() *Registry {
	return &Registry{peers: make(map[string]*Peer)}
}

// Get returns the peer for addr, if known.
func (r *Registry) Get(addr string) (*Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[addr]
	return p, ok
}

// GetOrCreate returns the peer for addr, creating it on first sight.
func (r *Registry) GetOrCreate(addr string) *Peer {
	r.mu.RLock()
	p, ok := r.peers[addr]
	r.mu.RUnlock()
	if ok {
		return p
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok = r.peers[addr]; ok {
		return p
	}
	p = New(addr)
	r.peers[addr] = p
	return p
}

// Remove forgets the peer for addr.
func (r *Registry) Remove(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, addr)
}

// Count returns the number of known peers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// ConnTotal sums live connections across all peers.
func (r *Registry) ConnTotal() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, p := range r.peers {
		n += p.ConnCount()
	}
	return n
}
