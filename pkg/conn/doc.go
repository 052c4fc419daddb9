// Package conn is the protocol-agnostic connection-management core of
// relayd.
//
// It owns the lifecycle of every established transport connection and
// dispatches lifecycle events and inbound data to the protocol engine
// that owns the connection, without per-protocol special-casing.
//
// # Hook registry
//
// Each protocol registers a Hooks implementation exactly once at
// start-up:
//
//	conn.Register(conn.ProtoHTTP, httpHooks)
//	conn.Register(conn.ProtoWS, wsHooks)
//
// Registering a protocol twice, or with an out-of-range identifier, is a
// programming error and panics. The registry is never mutated while the
// data path is running; dispatch reads it without locks and this absence
// of runtime mutation is load-bearing, not a convenience.
//
// # Reference counting
//
// A Conn starts with one reference held by the transport layer. The
// teardown-class transitions (Shutdown, Close, Abort) bracket their hook
// call with Get/Put so that a teardown racing on another goroutine
// cannot reclaim the record mid-call. The acquire and its matching
// release may run on different goroutines, which is why the counter is a
// bare atomic and not a lock or scope-bound guard. When the count drops
// to zero the transport-installed finalizer runs; a count can never
// leave zero again.
//
// # Receive pipeline
//
// Receive walks a forward-linked netbuf chain, detaches each segment and
// hands it to the decoder selected by the connection's protocol tag
// (WebSocket tags use the WebSocket decoder, everything else the HTTP
// decoder). A Drop result may carry a split remainder: the tail of a
// buffer that held a second, independent message after the dropped one.
// The remainder is reinserted ahead of the buffers that followed, so a
// rejected message does not swallow a valid one sitting behind it in the
// same segment. After any terminal failure the rest of the chain is
// discarded undecoded.
package conn
