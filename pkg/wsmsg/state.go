// Package wsmsg is the WebSocket collaborator of the connection core: a
// frame delimiter implementing conn.Decoder plus the WebSocket hook set.
//
// The framer only delimits frames (header arithmetic, extended payload
// lengths, masking key accounting); payload interpretation belongs to
// the consumer the framer delivers into. The hook set manages the
// per-connection transmit queue and emits a close frame on graceful
// shutdown.
package wsmsg

import (
	"sync"

	"github.com/eapache/queue"
	"github.com/getrelayd/relayd/pkg/conn"
)

// connState is the engine's per-connection state, stashed in
// Conn.ProtoData at init time.
type connState struct {
	mu      sync.Mutex
	pending []byte       // partial frame awaiting more data
	txq     *queue.Queue // outbound frames awaiting the socket
}

func newConnState() *connState {
	return &connState{txq: queue.New()}
}

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
