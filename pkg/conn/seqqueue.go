package conn

import (
	"sync"

	"github.com/eapache/queue"
)

// SeqQueue is the request-sequencing queue of a client-side connection.
// The owning protocol engine pushes each in-flight request on send and
// pops it when the matching response arrives (or when the connection is
// dropped). The core requires the queue to be empty by the time Release
// completes.
type SeqQueue struct {
	mu sync.Mutex
	q  *queue.Queue
}

func newSeqQueue() *SeqQueue {
	return &SeqQueue{q: queue.New()}
}

// Push appends a message to the queue.
func (s *SeqQueue) Push(m Msg) {
	s.mu.Lock()
	s.q.Add(m)
	s.mu.Unlock()
}

// Pop removes and returns the oldest message, or nil, false when empty.
func (s *SeqQueue) Pop() (Msg, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.q.Length() == 0 {
		return nil, false
	}
	m, _ := s.q.Remove().(Msg)
	return m, true
}

// Len returns the number of in-flight messages.
func (s *SeqQueue) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.Length()
}

// Drain removes all messages and returns how many were removed.
func (s *SeqQueue) Drain() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.q.Length()
	for s.q.Length() > 0 {
		s.q.Remove()
	}
	return n
}
