// Package httpmsg is the HTTP collaborator of the connection core: a
// message framer implementing conn.Decoder plus the HTTP hook set.
//
// The framer only delimits messages (start-line/header block boundary
// and Content-Length); full header and body parsing belongs to the
// upstream consumer the framer delivers into. The hook set manages the
// per-connection transmit queue and, for client-side connections, the
// request-sequencing queue whose emptiness the core asserts at release.
package httpmsg

import (
	"sync"

	"github.com/eapache/queue"
	"github.com/getrelayd/relayd/pkg/conn"
)

// connState is the engine's per-connection state, stashed in
// Conn.ProtoData at init time.
type connState struct {
	mu      sync.Mutex
	pending []byte       // partial message awaiting more data
	txq     *queue.Queue // outbound messages awaiting the socket
}

func newConnState() *connState {
	return &connState{txq: queue.New()}
}

// stateOf returns the engine state for c, installing it on first use.
// OnInit installs it before the data path runs; the lazy path exists for
// connections driven directly in tests.
func stateOf(c *conn.Conn) *connState {
	if s, ok := c.ProtoData.(*connState); ok {
		return s
	}
	s := newConnState()
	c.ProtoData = s
	return s
}

func (s *connState) takePending(fresh []byte) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return fresh
	}
	data := append(s.pending, fresh...)
	s.pending = nil
	return data
}

func (s *connState) storePending(data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	s.mu.Lock()
	s.pending = cp
	s.mu.Unlock()
}

func (s *connState) clearPending() {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}

// drainTx empties the transmit queue and returns the removed messages.
func (s *connState) drainTx() []conn.Msg {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]conn.Msg, 0, s.txq.Length())
	for s.txq.Length() > 0 {
		if m, ok := s.txq.Remove().(conn.Msg); ok {
			out = append(out, m)
		}
	}
	return out
}

func (s *connState) discardTx() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.txq.Length()
	for s.txq.Length() > 0 {
		s.txq.Remove()
	}
	return n
}
