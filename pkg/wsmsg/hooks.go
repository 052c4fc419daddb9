package wsmsg

import (
	"errors"
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/getrelayd/relayd/pkg/conn"
	"github.com/getrelayd/relayd/pkg/metrics"
)

// DefaultQueueDepth bounds the per-connection transmit queue when the
// hook set is not configured otherwise.
const DefaultQueueDepth = 64

// SendFunc writes one message to the transport. Implemented by the
// transport layer; nil falls back to the connection's socket writer.
type SendFunc func(c *conn.Conn, msg conn.Msg) error

// Hooks is the WebSocket lifecycle hook set. One instance serves every
// WebSocket connection, plain or TLS-wrapped.
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
	h.log().Debug("websocket connection established",
		slog.String("conn", c.ID()), slog.String("kind", c.Kind().String()))
	return nil
}

// OnRepair resets framing state: a re-established connection starts at
// a frame boundary.
func (h *Hooks) OnRepair(c *conn.Conn) {
	stateOf(c).clearPending()
	h.log().Debug("websocket connection repaired", slog.String("conn", c.ID()))
}

// OnShutdown flushes queued frames and appends a close frame so the
// peer sees a clean closing handshake. With sync unset socket failures
// are not reported back.
func (h *Hooks) OnShutdown(c *conn.Conn, sync bool) error {
	var firstErr error
	for _, m := range stateOf(c).drainTx() {
		if err := h.write(c, m); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	closing := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	frame := encodeFrame(websocket.CloseMessage, closing)
	if err := h.write(c, conn.BytesMsg(frame)); err != nil && firstErr == nil {
		firstErr = err
	}
	if !sync {
		return nil
	}
	return firstErr
}

// OnClose discards anything still queued and stops inbound decoding. No
// closing handshake: close is the abrupt path.
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
// output, and (for client connections) the in-flight queue the core
// will assert empty at release.
func (h *Hooks) OnDrop(c *conn.Conn) {
	st := stateOf(c)
	st.clearPending()
	st.discardTx()
	if c.Kind() == conn.KindClient {
		if n := c.Seq().Drain(); n > 0 {
			h.log().Debug("dropped unanswered frames",
				slog.String("conn", c.ID()), slog.Int("count", n))
		}
	}
}

// OnRelease is the last callback before the record is reclaimed.
func (h *Hooks) OnRelease(c *conn.Conn) {
	h.log().Debug("websocket connection released", slog.String("conn", c.ID()))
}

// OnSend queues msg and attempts to flush it to the socket. Ownership
// of msg passes to this hook; on failure the message is gone.
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
