package httpmsg

import (
	"errors"
	"log/slog"

	"github.com/getrelayd/relayd/pkg/conn"
	"github.com/getrelayd/relayd/pkg/metrics"
)

// DefaultQueueDepth bounds the per-connection transmit queue when the
// hook set is not configured otherwise.
const DefaultQueueDepth = 64

// SendFunc writes one message to the transport. Implemented by the
// transport layer; nil falls back to the connection's socket writer.
type SendFunc func(c *conn.Conn, msg conn.Msg) error

// Hooks is the HTTP lifecycle hook set. One instance serves every HTTP
// connection, plain or TLS-wrapped; per-connection state lives on the
// connection itself.
type Hooks struct {
	// Sender overrides the transport write primitive. Nil writes to
	// Conn.Sock.
	Sender SendFunc

	// QueueDepth bounds the transmit queue; 0 means DefaultQueueDepth.
	QueueDepth int

	// Log receives engine diagnostics; nil uses slog.Default.
	Log *slog.Logger
}

func (h *Hooks) log() *slog.Logger {
	if h.Log != nil {
		return h.Log
	}
	return slog.Default()
}

func (h *Hooks) depth() int {
	if h.QueueDepth > 0 {
		return h.QueueDepth
	}
	return DefaultQueueDepth
}

// OnInit installs the engine's per-connection state.
func (h *Hooks) OnInit(c *conn.Conn) error {
	c.ProtoData = newConnState()
	h.log().Debug("http connection established",
		slog.String("conn", c.ID()), slog.String("kind", c.Kind().String()))
	return nil
}

// OnRepair resets framing state: a re-established connection starts at
// a message boundary.
func (h *Hooks) OnRepair(c *conn.Conn) {
	stateOf(c).clearPending()
	h.log().Debug("http connection repaired", slog.String("conn", c.ID()))
}

// OnShutdown drains the transmit queue so already-accepted messages go
// out before the connection winds down. With sync unset the flush is
// still attempted but a broken socket is not reported back.
func (h *Hooks) OnShutdown(c *conn.Conn, sync bool) error {
	var firstErr error
	for _, m := range stateOf(c).drainTx() {
		if err := h.write(c, m); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if !sync {
		return nil
	}
	return firstErr
}

// OnClose discards anything still queued and stops inbound decoding.
func (h *Hooks) OnClose(c *conn.Conn, sync bool) error {
	c.SuppressReceive()
	stateOf(c).discardTx()
	return nil
}

// OnAbort discards queued output without touching the socket.
func (h *Hooks) OnAbort(c *conn.Conn) error {
	stateOf(c).discardTx()
	return nil
}

// OnDrop releases protocol-level resources: framing state, queued
// output, and (for client connections) the in-flight request queue the
// core will assert empty at release.
func (h *Hooks) OnDrop(c *conn.Conn) {
	st := stateOf(c)
	st.clearPending()
	st.discardTx()
	if c.Kind() == conn.KindClient {
		if n := c.Seq().Drain(); n > 0 {
			h.log().Debug("dropped in-flight requests",
				slog.String("conn", c.ID()), slog.Int("count", n))
		}
	}
}

// OnRelease is the last callback before the record is reclaimed.
func (h *Hooks) OnRelease(c *conn.Conn) {
	h.log().Debug("http connection released", slog.String("conn", c.ID()))
}

// OnSend queues msg and attempts to flush it to the socket. Ownership of
// msg has already passed to this hook; on any failure the message is
// simply gone.
func (h *Hooks) OnSend(c *conn.Conn, msg conn.Msg) error {
	st := stateOf(c)

	st.mu.Lock()
	if st.txq.Length() >= h.depth() {
		st.mu.Unlock()
		metrics.SendError("queue_full")
		return conn.ErrSendQueueFull
	}
	st.txq.Add(msg)
	if c.Kind() == conn.KindClient {
		c.Seq().Push(msg)
	}
	st.mu.Unlock()

	for _, m := range st.drainTx() {
		if err := h.write(c, m); err != nil {
			metrics.SendError("broken")
			return conn.ErrConnBroken
		}
	}
	return nil
}

func (h *Hooks) write(c *conn.Conn, m conn.Msg) error {
	if h.Sender != nil {
		return h.Sender(c, m)
	}
	w := c.Sock()
	if w == nil {
		return errors.New("no socket writer installed")
	}
	_, err := w.Write(m.Bytes())
	return err
}
