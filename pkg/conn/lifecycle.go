package conn

import (
	"fmt"
	"log/slog"
)

// logger receives the core's warning-class diagnostics. Replaceable at
// start-up; not synchronized against data-path use.
var logger = slog.Default()

// SetLogger replaces the core's logger. Call before the data path runs.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Establish publishes the "connection is established" event. A non-nil
// error means the transport layer should abandon the connection.
func (c *Conn) Establish() error {
	return c.hooks().OnInit(c)
}

// Repair re-initializes protocol state after the same logical connection
// was re-established. No state gate: callers only invoke it on
// connections known to support repair.
func (c *Conn) Repair() {
	c.hooks().OnRepair(c)
}

// Shutdown requests graceful teardown. The reference bracket keeps a
// concurrent teardown on another goroutine from reclaiming the record
// while the hook is running.
func (c *Conn) Shutdown(sync bool) error {
	c.Get()
	defer c.Put()
	return c.hooks().OnShutdown(c, sync)
}

// Close requests abrupt teardown.
//
// A close issued from task context can legitimately race with the
// transport layer unwinding the connection from its I/O context; the
// reference bracket is the sole defense against the record being freed
// under this call.
func (c *Conn) Close(sync bool) error {
	c.Get()
	defer c.Put()
	return c.hooks().OnClose(c, sync)
}

// Abort kills the connection immediately. A hook failure here is logged
// and tolerated, never escalated: there is nothing gentler left to try.
func (c *Conn) Abort() {
	c.Get()
	defer c.Put()
	if err := c.hooks().OnAbort(c); err != nil {
		logger.Warn("connection abort hook failed",
			slog.String("conn", c.id),
			slog.String("proto", c.proto.String()),
			slog.Any("error", err))
	}
}

// Drop asks the protocol engine to release protocol-level resources tied
// to this connection. No reference bracket: the caller already holds a
// reference by contract.
func (c *Conn) Drop() {
	c.hooks().OnDrop(c)
}

// Release fires the final engine callback. A client connection whose
// request-sequencing queue is still non-empty afterwards indicates a
// resource-tracking bug elsewhere in the system; that is fatal, not a
// reportable runtime failure.
func (c *Conn) Release() {
	c.hooks().OnRelease(c)
	if c.kind == KindClient && c.seq.Len() != 0 {
		panic(fmt.Sprintf("conn %s: sequencing queue not empty after release", c.id))
	}
}

// Send transmits msg through the connection. Ownership of msg passes to
// the hook unconditionally; the caller must not touch it afterwards.
//
// Returns nil on success, ErrConnBroken when the connection is broken,
// ErrSendQueueFull when the transmit queue is full (transient), or
// ErrNoMem on resource exhaustion (transient).
func (c *Conn) Send(msg Msg) error {
	return c.hooks().OnSend(c, msg)
}
