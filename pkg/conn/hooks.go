package conn

import (
	"fmt"
	"sync"

	"github.com/getrelayd/relayd/pkg/netbuf"
)

// Msg is an outbound protocol message. Ownership transfers to the hook
// unconditionally when Send is called: the caller must not read, mutate,
// or reuse the message afterwards regardless of the returned status.
type Msg interface {
	Bytes() []byte
}

// BytesMsg is the trivial Msg carrying a raw byte payload.
type BytesMsg []byte

// Bytes returns the payload.
func (m BytesMsg) Bytes() []byte { return m }

// Hooks is the per-protocol bundle of lifecycle callback entry points.
// One implementation is registered per base protocol identifier at
// start-up and looked up by every lifecycle call for the lifetime of the
// process.
type Hooks interface {
	// OnInit is fired when the connection is established. A non-nil
	// error tells the transport layer to abandon the connection.
	OnInit(c *Conn) error

	// OnRepair is fired when the same logical connection is
	// re-established after a disruption.
	OnRepair(c *Conn)

	// OnShutdown requests graceful teardown; sync selects synchronous
	// versus asynchronous draining.
	OnShutdown(c *Conn, sync bool) error

	// OnClose requests abrupt teardown, initiated by the network or by
	// administrative action.
	OnClose(c *Conn, sync bool) error

	// OnAbort kills the connection immediately. Its error is logged,
	// never escalated.
	OnAbort(c *Conn) error

	// OnDrop asks the engine to release protocol-level resources tied
	// to this connection.
	OnDrop(c *Conn)

	// OnRelease is the final engine callback before the record is
	// reclaimed.
	OnRelease(c *Conn)

	// OnSend transmits msg. Ownership of msg passes to the hook on
	// call.
	OnSend(c *Conn, msg Msg) error
}

// Decoder is the "process one buffer" entry point of a protocol message
// decoder. The decoder takes ownership of the buffer. A StatusDrop
// result may return a split remainder: a standalone buffer (or chain)
// holding a second, independent message that began later inside the same
// input buffer.
type Decoder interface {
	Decode(c *Conn, b *netbuf.Buf) (Status, *netbuf.Buf)
}

// The hook table is populated during process start-up and torn down
// during process shutdown; it is never mutated concurrently with
// data-path dispatch. Dispatch reads it without locks, which is why that
// assumption is load-bearing. regMu serializes the start-up mutations
// only.
var (
	regMu   sync.Mutex
	hookTab [MaxProtos]Hooks

	httpDec Decoder
	wsDec   Decoder
)

// Register binds a hook set to a base protocol identifier. The secure
// bit, if present, is discarded. Registering an out-of-range identifier
// or registering twice is a fatal configuration-time error.
func Register(p Proto, h Hooks) {
	idx := hookIndex(p)
	regMu.Lock()
	defer regMu.Unlock()
	if hookTab[idx] != nil {
		panic(fmt.Sprintf("conn: hooks already registered for protocol %s", p.Base()))
	}
	hookTab[idx] = h
}

// Unregister clears the binding for a protocol identifier.
func Unregister(p Proto) {
	idx := hookIndex(p)
	regMu.Lock()
	defer regMu.Unlock()
	hookTab[idx] = nil
}

// RegisterHTTPDecoder installs the decoder used for every non-WebSocket
// protocol tag. Same one-time discipline as Register.
func RegisterHTTPDecoder(d Decoder) {
	regMu.Lock()
	defer regMu.Unlock()
	if httpDec != nil {
		panic("conn: HTTP decoder already registered")
	}
	httpDec = d
}

// RegisterWSDecoder installs the decoder used for the WebSocket tags,
// plain and secure.
func RegisterWSDecoder(d Decoder) {
	regMu.Lock()
	defer regMu.Unlock()
	if wsDec != nil {
		panic("conn: WebSocket decoder already registered")
	}
	wsDec = d
}

// UnregisterDecoders clears both decoder slots.
func UnregisterDecoders() {
	regMu.Lock()
	defer regMu.Unlock()
	httpDec = nil
	wsDec = nil
}

// hooks resolves the connection's hook set. Pure indirection: no
// allocation, no locking, no blocking beyond the invoked hook itself.
func (c *Conn) hooks() Hooks {
	h := hookTab[hookIndex(c.proto)]
	if h == nil {
		panic(fmt.Sprintf("conn: no hooks registered for protocol %s", c.proto.Base()))
	}
	return h
}
